package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus/portal/internal/logger"
	"campus/portal/internal/model"
	"campus/portal/internal/storage"
)

type fakePlatform struct {
	mu      sync.Mutex
	answer  Permission
	asked   int
	shown   []string
	bodies  []string
	panicOn bool
}

func (f *fakePlatform) RequestPermission(context.Context) (Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked++
	return f.answer, nil
}

func (f *fakePlatform) Show(_ context.Context, title, body string) error {
	if f.panicOn {
		panic("platform exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shown = append(f.shown, title)
	f.bodies = append(f.bodies, body)
	return nil
}

var sample = model.Notice{ID: "n1", Title: "Exam schedule", Content: "Mid terms start Monday"}

func TestNotifyRequiresGrant(t *testing.T) {
	ctx := context.Background()
	platform := &fakePlatform{answer: Granted}
	b := NewBridge(platform, storage.NewMemoryStore(), logger.Nop())

	b.Notify(ctx, sample)
	b.Wait()
	assert.Empty(t, platform.shown, "default permission must not notify")

	b.RequestOnce(ctx)
	b.Wait()
	assert.Equal(t, Granted, b.Permission(ctx))

	b.Notify(ctx, sample)
	b.Wait()
	assert.Equal(t, []string{"New Notice: Exam schedule"}, platform.shown)
	assert.Equal(t, []string{"Mid terms start Monday"}, platform.bodies)
}

func TestRequestOnlyOnce(t *testing.T) {
	ctx := context.Background()
	platform := &fakePlatform{answer: Default}
	b := NewBridge(platform, storage.NewMemoryStore(), logger.Nop())

	b.RequestOnce(ctx)
	b.RequestOnce(ctx)
	b.Wait()
	assert.Equal(t, 1, platform.asked)
	assert.Equal(t, Default, b.Permission(ctx))
}

func TestDecidedPermissionNotAskedAgain(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, PermissionKey, string(Denied)))
	platform := &fakePlatform{answer: Granted}
	b := NewBridge(platform, store, logger.Nop())

	b.RequestOnce(ctx)
	b.Notify(ctx, sample)
	b.Wait()
	assert.Equal(t, 0, platform.asked)
	assert.Empty(t, platform.shown)
}

func TestPanicIsContained(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, PermissionKey, string(Granted)))
	var buf bytes.Buffer
	l := logger.FromLog(log.New(&buf, "", 0), false)
	b := NewBridge(&fakePlatform{panicOn: true}, store, l)

	assert.NotPanics(t, func() {
		b.Notify(ctx, sample)
		b.Wait()
	})
	assert.Contains(t, buf.String(), "notification panicked")
}

func TestUnsupportedBridge(t *testing.T) {
	ctx := context.Background()
	b := NewBridge(nil, storage.NewMemoryStore(), logger.Nop())
	assert.False(t, b.Supported())
	b.RequestOnce(ctx)
	b.Notify(ctx, sample)
	b.Wait()
	assert.Equal(t, Denied, b.Permission(ctx))

	var nilBridge *Bridge
	assert.NotPanics(t, func() { nilBridge.Notify(ctx, sample) })
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	perm, err := c.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Granted, perm)
	require.NoError(t, c.Show(context.Background(), "New Notice: A", "body"))
	assert.Contains(t, buf.String(), "[New Notice: A] body")
}

func TestDesktop(t *testing.T) {
	var shown []string
	orig := desktopNotify
	desktopNotify = func(title, message, appIcon string) error {
		shown = append(shown, title+"|"+message)
		return nil
	}
	t.Cleanup(func() { desktopNotify = orig })

	var prompt bytes.Buffer
	d := NewDesktop(strings.NewReader("y\n"), &prompt, "")
	perm, err := d.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Granted, perm)
	assert.Contains(t, prompt.String(), "desktop notifications")

	perm, _ = NewDesktop(strings.NewReader("no\n"), io.Discard, "").RequestPermission(context.Background())
	assert.Equal(t, Denied, perm)
	perm, _ = NewDesktop(strings.NewReader(""), io.Discard, "").RequestPermission(context.Background())
	assert.Equal(t, Default, perm)

	require.NoError(t, d.Show(context.Background(), "New Notice: A", "body"))
	assert.Equal(t, []string{"New Notice: A|body"}, shown)
}

func TestEmail(t *testing.T) {
	var got map[string]interface{}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()
	orig := sendgridHost
	sendgridHost = srv.URL
	t.Cleanup(func() { sendgridHost = orig })

	e := NewEmail("SG.key", "noreply@example.edu", "asha@example.edu")
	perm, _ := e.RequestPermission(context.Background())
	assert.Equal(t, Granted, perm)
	require.NoError(t, e.Show(context.Background(), "New Notice: A", "body"))
	assert.Equal(t, "Bearer SG.key", auth)
	personalizations := got["personalizations"].([]interface{})
	assert.Equal(t, "New Notice: A", personalizations[0].(map[string]interface{})["subject"])

	perm, _ = NewEmail("", "noreply@example.edu", "asha@example.edu").RequestPermission(context.Background())
	assert.Equal(t, Denied, perm)
}

func TestEmailRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()
	orig := sendgridHost
	sendgridHost = srv.URL
	t.Cleanup(func() { sendgridHost = orig })

	err := NewEmail("SG.bad", "noreply@example.edu", "asha@example.edu").Show(context.Background(), "t", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestSlowAnswerIsRecorded(t *testing.T) {
	ctx := context.Background()
	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })
	b := NewBridge(NewDesktop(pr, io.Discard, ""), storage.NewMemoryStore(), logger.Nop())
	b.timeout = 20 * time.Millisecond

	b.RequestOnce(ctx)
	time.Sleep(60 * time.Millisecond)
	go func() { _, _ = pw.Write([]byte("y\n")) }()
	b.Wait()
	assert.Equal(t, Granted, b.Permission(ctx))
}

func TestAnswerAfterCancelIsKept(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })
	var prompt bytes.Buffer
	b := NewBridge(NewDesktop(pr, &prompt, ""), storage.NewMemoryStore(), logger.Nop())

	mountCtx, cancel := context.WithCancel(context.Background())
	b.RequestOnce(mountCtx)
	cancel()
	b.Wait()
	assert.Equal(t, Default, b.Permission(context.Background()))

	go func() { _, _ = pw.Write([]byte("y\n")) }()
	b.RequestOnce(context.Background())
	b.Wait()
	assert.Equal(t, Granted, b.Permission(context.Background()))
	assert.Equal(t, 1, strings.Count(prompt.String(), "[y/n]"), "one prompt, one reader")
}

func TestCloseDropsUnansweredQuestion(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })
	b := NewBridge(NewDesktop(pr, io.Discard, ""), storage.NewMemoryStore(), logger.Nop())

	b.RequestOnce(context.Background())
	done := make(chan struct{})
	go func() {
		b.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return with the question unanswered")
	}
	assert.Equal(t, Default, b.Permission(context.Background()))
}
