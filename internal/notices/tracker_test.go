package notices

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus/portal/internal/logger"
	"campus/portal/internal/model"
	"campus/portal/internal/storage"
)

type recorder struct {
	alerts   []string
	messages []string
	notified []string
}

func (r *recorder) NoticeAlert(n model.Notice, message string) {
	r.alerts = append(r.alerts, n.ID)
	r.messages = append(r.messages, message)
}

func (r *recorder) Notify(_ context.Context, n model.Notice) {
	r.notified = append(r.notified, n.ID)
}

func notice(id string, minute int) model.Notice {
	return model.Notice{
		ID:        id,
		Title:     "Notice " + id,
		CreatedAt: model.NewTimestamp(time.Date(2024, 3, 1, 10, minute, 0, 0, time.UTC)),
	}
}

func newTracker(store storage.Storage, rec *recorder) *Tracker {
	return NewTracker(store, logger.Nop(), rec, rec)
}

func TestSameLatestAlertsOnce(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	tr := newTracker(storage.NewMemoryStore(), rec)

	assert.True(t, tr.Observe(ctx, "u1", []model.Notice{notice("n3", 3)}))
	assert.False(t, tr.Observe(ctx, "u1", []model.Notice{notice("n3", 3)}))

	assert.Equal(t, []string{"n3"}, rec.alerts)
	assert.Equal(t, []string{"n3"}, rec.notified)
	assert.Equal(t, []string{InAppMessage}, rec.messages)
}

func TestCursorSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	first := &recorder{}
	newTracker(store, first).Observe(ctx, "u1", []model.Notice{notice("n3", 3), notice("n2", 2)})

	second := &recorder{}
	assert.False(t, newTracker(store, second).Observe(ctx, "u1", []model.Notice{notice("n3", 3)}))
	assert.Empty(t, second.alerts)
}

func TestOnlyNewestAlerts(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	tr := newTracker(storage.NewMemoryStore(), rec)

	tr.Observe(ctx, "u1", []model.Notice{notice("n1", 1)})
	tr.Observe(ctx, "u1", []model.Notice{notice("n4", 4), notice("n3", 3), notice("n2", 2), notice("n1", 1)})

	assert.Equal(t, []string{"n1", "n4"}, rec.alerts)
	cursor, ok, err := tr.Cursor(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "n4", cursor.ID)
}

func TestCursorNeverRegresses(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	tr := newTracker(storage.NewMemoryStore(), rec)

	tr.Observe(ctx, "u1", []model.Notice{notice("n5", 5)})
	// a stale response whose newest entry predates the cursor
	assert.False(t, tr.Observe(ctx, "u1", []model.Notice{notice("n4", 4)}))

	cursor, _, _ := tr.Cursor(ctx, "u1")
	assert.Equal(t, "n5", cursor.ID)
	assert.Equal(t, []string{"n5"}, rec.alerts)
}

func TestEmptyListDoesNothing(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	rec := &recorder{}
	assert.False(t, newTracker(store, rec).Observe(ctx, "u1", nil))
	_, ok, _ := store.Get(ctx, CursorKey("u1"))
	assert.False(t, ok)
	assert.Empty(t, rec.alerts)
}

func TestCursorIsPerUser(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	tr := newTracker(storage.NewMemoryStore(), rec)

	tr.Observe(ctx, "u1", []model.Notice{notice("n3", 3)})
	tr.Observe(ctx, "u2", []model.Notice{notice("n3", 3)})
	assert.Equal(t, []string{"n3", "n3"}, rec.alerts)
}

func TestLegacyBareCursor(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, CursorKey("u1"), "n3"))
	rec := &recorder{}
	tr := newTracker(store, rec)

	assert.False(t, tr.Observe(ctx, "u1", []model.Notice{notice("n3", 3)}))
	assert.True(t, tr.Observe(ctx, "u1", []model.Notice{notice("n4", 4)}))

	raw, _, _ := store.Get(ctx, CursorKey("u1"))
	assert.JSONEq(t, `{"id":"n4","created_at":"2024-03-01T10:04:00Z"}`, raw)
}

func TestNilSurfaces(t *testing.T) {
	tr := NewTracker(storage.NewMemoryStore(), logger.Nop(), nil, nil)
	assert.True(t, tr.Observe(context.Background(), "u1", []model.Notice{notice("n1", 1)}))
}

func TestMarkSeenIsSilent(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	tr := newTracker(storage.NewMemoryStore(), rec)

	tr.Observe(ctx, "u1", []model.Notice{notice("n5", 5)})
	tr.MarkSeen(ctx, "u1", notice("n6", 6))
	assert.False(t, tr.Observe(ctx, "u1", []model.Notice{notice("n6", 6), notice("n5", 5)}))

	// an older notice never moves the cursor back
	tr.MarkSeen(ctx, "u1", notice("n4", 4))
	cursor, _, _ := tr.Cursor(ctx, "u1")
	assert.Equal(t, "n6", cursor.ID)
	assert.Equal(t, []string{"n5"}, rec.alerts)
	assert.Equal(t, []string{"n5"}, rec.notified)
}
