// Package notices surfaces a newly arrived notice once per user per device.
package notices

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"campus/portal/internal/logger"
	"campus/portal/internal/metrics"
	"campus/portal/internal/model"
	"campus/portal/internal/storage"
)

const InAppMessage = "You have a new notice!"

// CursorKey is the storage key of a user's last surfaced notice.
func CursorKey(userID string) string {
	return "lastSeenNoticeId_" + userID
}

// Alerter is the in-app surface: open the notice panel and show an info
// message.
type Alerter interface {
	NoticeAlert(notice model.Notice, message string)
}

// Notifier is the system notification surface. Notify must not block.
type Notifier interface {
	Notify(ctx context.Context, notice model.Notice)
}

type AlerterFunc func(notice model.Notice, message string)

func (f AlerterFunc) NoticeAlert(notice model.Notice, message string) { f(notice, message) }

// Cursor is the persisted position. CreatedAt is zero for values written as a
// bare id.
type Cursor struct {
	ID        string          `json:"id"`
	CreatedAt model.Timestamp `json:"created_at"`
}

func parseCursor(raw string) Cursor {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		var c Cursor
		if err := json.Unmarshal([]byte(raw), &c); err == nil {
			return c
		}
	}
	return Cursor{ID: raw}
}

type Tracker struct {
	storage  storage.Storage
	log      logger.Logger
	alerter  Alerter
	notifier Notifier

	mu sync.Mutex
}

func NewTracker(store storage.Storage, log logger.Logger, alerter Alerter, notifier Notifier) *Tracker {
	return &Tracker{storage: store, log: log, alerter: alerter, notifier: notifier}
}

// Cursor reads the stored position for userID.
func (t *Tracker) Cursor(ctx context.Context, userID string) (Cursor, bool, error) {
	raw, ok, err := t.storage.Get(ctx, CursorKey(userID))
	if err != nil || !ok || raw == "" {
		return Cursor{}, false, err
	}
	return parseCursor(raw), true, nil
}

// Observe runs after every committed notices refresh. list is newest first;
// only list[0] can alert. It reports whether an alert fired.
func (t *Tracker) Observe(ctx context.Context, userID string, list []model.Notice) bool {
	if len(list) == 0 || userID == "" {
		return false
	}
	latest := list[0]
	if latest.ID == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	cursor, ok, err := t.Cursor(ctx, userID)
	if err != nil {
		// An unreadable cursor must not turn into an alert on every tick.
		t.log.Warn("notice cursor unavailable", err)
		return false
	}
	if ok && cursor.ID == latest.ID {
		return false
	}
	if ok && isOlder(latest.CreatedAt.Time, cursor.CreatedAt.Time) {
		t.log.Debug("notice older than cursor ignored", latest.ID)
		return false
	}

	if t.alerter != nil {
		t.alerter.NoticeAlert(latest, InAppMessage)
	}
	if t.notifier != nil {
		t.notifier.Notify(ctx, latest)
	}
	metrics.NoticeAlerts.Inc()

	t.save(ctx, userID, latest)
	return true
}

// MarkSeen moves the cursor to n without alerting, for a notice the user
// already knows about because they posted it. The cursor still never moves
// back.
func (t *Tracker) MarkSeen(ctx context.Context, userID string, n model.Notice) {
	if userID == "" || n.ID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	cursor, ok, err := t.Cursor(ctx, userID)
	if err != nil {
		t.log.Warn("notice cursor unavailable", err)
		return
	}
	if ok && (cursor.ID == n.ID || isOlder(n.CreatedAt.Time, cursor.CreatedAt.Time)) {
		return
	}
	t.save(ctx, userID, n)
}

func (t *Tracker) save(ctx context.Context, userID string, n model.Notice) {
	data, err := json.Marshal(Cursor{ID: n.ID, CreatedAt: n.CreatedAt})
	if err != nil {
		t.log.Error("encoding notice cursor failed", errors.WithStack(err))
		return
	}
	if err := t.storage.Set(ctx, CursorKey(userID), string(data)); err != nil {
		t.log.Warn("notice cursor not saved", err)
	}
}

func isOlder(candidate, cursor time.Time) bool {
	if candidate.IsZero() || cursor.IsZero() {
		return false
	}
	return candidate.Before(cursor)
}
