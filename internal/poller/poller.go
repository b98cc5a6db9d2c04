// Package poller runs dashboard refreshes: all-or-nothing batches of reads,
// fired on an owned interval.
package poller

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"campus/portal/internal/logger"
	"campus/portal/internal/metrics"
)

type Fetch func(ctx context.Context) error

// Batch issues every fetch concurrently. commit runs only when all of them
// succeeded; otherwise the first error is returned and nothing is committed.
// Fetches must write into staging variables, never into shared state.
func Batch(ctx context.Context, commit func(), fetches ...Fetch) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, fetch := range fetches {
		fetch := fetch
		g.Go(func() error { return fetch(gctx) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if commit != nil {
		commit()
	}
	return nil
}

type Poller struct {
	name    string
	log     logger.Logger
	timeout time.Duration
}

// New returns a poller labelled name in logs and metrics. timeout bounds a
// single tick; zero means 15s.
func New(name string, log logger.Logger, timeout time.Duration) *Poller {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Poller{name: name, log: log, timeout: timeout}
}

// Handle owns a running interval. Ticks may start while another goroutine is
// in Wait, so in-flight ticks are counted under mu rather than a WaitGroup.
type Handle struct {
	stop chan struct{}
	once sync.Once
	done chan struct{}

	mu       sync.Mutex
	idle     *sync.Cond
	inflight int
}

// Start fires tick immediately and then every interval until the handle is
// stopped or ctx ends. interval <= 0 fires once. Each tick runs in its own
// goroutine: a slow tick neither delays nor blocks the next, so a late
// response can land after a newer one.
func (p *Poller) Start(ctx context.Context, interval time.Duration, tick Fetch) *Handle {
	h := &Handle{stop: make(chan struct{}), done: make(chan struct{})}
	h.idle = sync.NewCond(&h.mu)
	p.fire(ctx, h, tick)
	if interval <= 0 {
		close(h.done)
		return h
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer close(h.done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-h.stop:
				return
			case <-ticker.C:
				p.fire(ctx, h, tick)
			}
		}
	}()
	return h
}

func (p *Poller) fire(ctx context.Context, h *Handle, tick Fetch) {
	metrics.PollTicks.WithLabelValues(p.name).Inc()
	h.mu.Lock()
	h.inflight++
	h.mu.Unlock()
	go func() {
		defer h.finish()
		tickCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()
		if err := tick(tickCtx); err != nil {
			metrics.BatchFailures.WithLabelValues(p.name).Inc()
			p.log.Warn(p.name+" refresh failed", err)
		}
	}()
}

func (h *Handle) finish() {
	h.mu.Lock()
	h.inflight--
	if h.inflight == 0 {
		h.idle.Broadcast()
	}
	h.mu.Unlock()
}

// Stop clears future ticks. Ticks already in flight run to completion.
func (h *Handle) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() { close(h.stop) })
	<-h.done
}

// Wait blocks until in-flight ticks have returned.
func (h *Handle) Wait() {
	if h == nil {
		return
	}
	h.mu.Lock()
	for h.inflight > 0 {
		h.idle.Wait()
	}
	h.mu.Unlock()
}
