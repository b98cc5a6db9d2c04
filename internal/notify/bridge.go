// Package notify mirrors new notices to a system-level notification surface.
// Everything here is best effort: the caller never blocks and never sees an
// error.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"campus/portal/internal/logger"
	"campus/portal/internal/metrics"
	"campus/portal/internal/model"
	"campus/portal/internal/storage"
)

type Permission string

const (
	Default Permission = "default"
	Granted Permission = "granted"
	Denied  Permission = "denied"
)

const PermissionKey = "notificationPermission"

// Platform is the OS capability behind the bridge.
type Platform interface {
	// RequestPermission asks the user; Default means the question was dismissed.
	RequestPermission(ctx context.Context) (Permission, error)
	Show(ctx context.Context, title, body string) error
}

func Title(n model.Notice) string {
	return "New Notice: " + n.Title
}

type Bridge struct {
	platform Platform
	storage  storage.Storage
	log      logger.Logger
	timeout  time.Duration

	mu         sync.Mutex
	requested  bool
	stopPrompt context.CancelFunc
	wg         sync.WaitGroup
}

// NewBridge returns a bridge over platform. A nil platform is an unsupported
// capability and every call becomes a no-op.
func NewBridge(platform Platform, store storage.Storage, log logger.Logger) *Bridge {
	return &Bridge{platform: platform, storage: store, log: log, timeout: 10 * time.Second}
}

func (b *Bridge) Supported() bool {
	return b != nil && b.platform != nil
}

// Permission is the persisted decision, Default when none was recorded.
func (b *Bridge) Permission(ctx context.Context) Permission {
	if !b.Supported() {
		return Denied
	}
	raw, ok, err := b.storage.Get(ctx, PermissionKey)
	if err != nil {
		b.log.Warn("notification permission unreadable", err)
		return Default
	}
	switch Permission(raw) {
	case Granted, Denied:
		if ok {
			return Permission(raw)
		}
	}
	return Default
}

// RequestOnce asks the platform for permission at most once per bridge, and
// only while the decision is still Default. The question stays open for the
// lifetime of ctx and the answer is recorded whenever it comes; nothing waits
// for it. A question cut short by ctx may be asked again.
func (b *Bridge) RequestOnce(ctx context.Context) {
	if !b.Supported() {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	if b.requested {
		b.mu.Unlock()
		cancel()
		return
	}
	b.requested = true
	b.stopPrompt = cancel
	b.mu.Unlock()

	b.background(ctx, "notification permission request", func(ctx context.Context) error {
		defer cancel()
		if b.Permission(ctx) != Default {
			return nil
		}
		perm, err := b.platform.RequestPermission(ctx)
		if ctx.Err() != nil && perm == Default {
			b.mu.Lock()
			b.requested = false
			b.mu.Unlock()
		}
		if err != nil {
			return errors.Wrap(err, "requesting permission")
		}
		if perm == Default {
			return nil
		}
		return b.storage.Set(context.WithoutCancel(ctx), PermissionKey, string(perm))
	})
}

// Notify shows "New Notice: <title>" with the notice content as body, only
// when permission was granted. No retry, no queue.
func (b *Bridge) Notify(ctx context.Context, n model.Notice) {
	if !b.Supported() {
		metrics.Notifications.WithLabelValues("skipped").Inc()
		return
	}
	b.background(ctx, "notification", func(parent context.Context) error {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), b.timeout)
		defer cancel()
		if b.Permission(ctx) != Granted {
			metrics.Notifications.WithLabelValues("skipped").Inc()
			return nil
		}
		if err := b.platform.Show(ctx, Title(n), n.Content); err != nil {
			metrics.Notifications.WithLabelValues("failed").Inc()
			return errors.Wrap(err, "showing notification")
		}
		metrics.Notifications.WithLabelValues("sent").Inc()
		return nil
	})
}

// Wait blocks until background work started so far has finished, including
// a permission question still waiting on the user.
func (b *Bridge) Wait() {
	if b == nil {
		return
	}
	b.wg.Wait()
}

// Close drops an unanswered permission question and waits for the rest.
func (b *Bridge) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	stop := b.stopPrompt
	b.mu.Unlock()
	if stop != nil {
		stop()
	}
	b.wg.Wait()
}

func (b *Bridge) background(ctx context.Context, what string, fn func(context.Context) error) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				b.log.Error(what+" panicked", errors.Errorf("%v", r))
			}
		}()
		if err := fn(ctx); err != nil {
			b.log.Warn(what+" failed", err)
		}
	}()
}
