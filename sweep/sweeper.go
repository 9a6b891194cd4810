package sweep

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// This file implements the periodic expiration sweep.

// Target is anything holding entries that can go stale.
type Target interface {
	RemoveExpired(now time.Time) int
}

/*
Sweeper reclaims stale entries independently of request traffic, so that a key
nobody asks for anymore does not stay in memory forever.

It has two states:
- Sleeping: waiting for the next tick
- Sweeping: inside one RemoveExpired call

The wait between sweeps happens outside of any cache lock.
*/
type Sweeper struct {
	target   Target
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool

	// wg is used to wait for the worker to finish during shutdown.
	wg sync.WaitGroup
}

type Option func(*Sweeper)

// WithClock sets the clock passed to RemoveExpired. Default time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = l }
}

// New creates a sweeper. Interval must be positive; config validation enforces it.
func New(target Target, interval time.Duration, opts ...Option) *Sweeper {
	s := &Sweeper{
		target:   target,
		interval: interval,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

/*
Start launches the background worker. It returns immediately.
Calling Start on a running sweeper does nothing.

The worker stops when ctx is cancelled or Stop is called.
*/
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.wg.Add(1)
	go s.worker(ctx)
}

// SweepOnce runs a single sweep now and returns how many entries it removed.
func (s *Sweeper) SweepOnce() int {
	removed := s.target.RemoveExpired(s.now())
	if removed > 0 {
		s.logger.Debug("swept expired entries", "removed", removed)
	}
	return removed
}

// worker sleeps for one interval, sweeps, and goes back to sleep.
func (s *Sweeper) worker(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce()
		}
	}
}

/*
Stop shuts the worker down and waits for it to exit.
A sweep already in progress finishes first. Stop is safe to call more than once,
and on a sweeper that was never started.
*/
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
}
