package poller

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// jitterFactor spreads each firing uniformly over interval ± 10%.
const jitterFactor = 0.1

// SchedulerState reports whether a timer is armed.
type SchedulerState string

const (
	// SchedulerStopped means no timer is armed.
	SchedulerStopped SchedulerState = "stopped"

	// SchedulerScheduled means a timer is armed and will fire the callback.
	SchedulerScheduled SchedulerState = "scheduled"
)

// SchedulerOption customises a [Scheduler].
type SchedulerOption func(*Scheduler)

// WithClock replaces the real clock, mainly for tests.
func WithClock(c Clock) SchedulerOption {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithRand replaces the jitter source. f must return values in [0, 1).
func WithRand(f func() float64) SchedulerOption {
	return func(s *Scheduler) {
		s.rand = f
	}
}

// Scheduler repeats a callback on a jittered interval.
//
// The scheduler is either stopped (no timer) or scheduled (one timer armed
// for interval ± 10%, recomputed before every firing). When a timer fires
// the callback runs to completion before the next timer is armed, so rounds
// never overlap and a slow round pushes the next one back instead of
// stacking up.
//
// Every call to [Scheduler.Configure] discards the armed timer and its loop
// and starts a new one from the new settings; a running timer is never
// adjusted in place. A round already executing is left to finish, but its
// loop exits afterwards without re-arming.
//
// All lifecycle methods (Start, Configure, Stop) are safe for concurrent use.
type Scheduler struct {
	fire   func(ctx context.Context)
	clock  Clock
	rand   func() float64
	logger *slog.Logger

	mu       sync.Mutex
	enabled  bool
	interval time.Duration
	lifetime context.Context
	stop     context.CancelFunc
	cancel   context.CancelFunc // current generation
	started  bool
	stopped  bool
	wg       sync.WaitGroup
}

// NewScheduler creates a stopped [Scheduler] that calls fire on every firing.
//
// The scheduler must be started with [Scheduler.Start] and stopped with
// [Scheduler.Stop]. fire receives the scheduler's lifetime context, which is
// cancelled by Stop but not by reconfiguration.
func NewScheduler(fire func(ctx context.Context), logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		fire:   fire,
		clock:  realClock{},
		rand:   rand.Float64,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Jitter returns interval scaled by a factor in [0.9, 1.1) chosen by r,
// where r is uniform in [0, 1).
func Jitter(interval time.Duration, r float64) time.Duration {
	delta := time.Duration(float64(interval) * jitterFactor * (2*r - 1))
	return interval + delta
}

// Start binds the scheduler to ctx and arms the timer if the current
// configuration is enabled.
//
// If ctx is nil, context.Background() is used as the parent context.
// Start is idempotent; subsequent calls after the first are no-ops.
// If Stop was called before Start, Start is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	s.lifetime, s.stop = context.WithCancel(ctx)
	s.rearmLocked()
}

// Configure replaces the schedule. A disabled schedule, or an interval of
// zero or less, leaves the scheduler stopped.
//
// Configure before Start only records the settings. Configure after Stop is
// a no-op.
func (s *Scheduler) Configure(enabled bool, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.enabled = enabled
	s.interval = interval

	if s.started {
		s.rearmLocked()
	}
}

// State reports whether a timer is currently armed.
func (s *Scheduler) State() SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil && s.lifetime.Err() == nil {
		return SchedulerScheduled
	}
	return SchedulerStopped
}

// Stop cancels any armed timer and waits for the scheduling loop, including
// a round in progress, to exit.
//
// Stop is idempotent and safe to call multiple times. Calling Stop before
// Start is a safe no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
		if s.stop != nil {
			s.stop()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// rearmLocked cancels the current generation and starts a new one if the
// configuration calls for it. s.mu must be held.
func (s *Scheduler) rearmLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	if !s.enabled || s.interval <= 0 {
		s.logger.Debug("auto-refresh stopped")
		return
	}

	gen, cancel := context.WithCancel(s.lifetime)
	s.cancel = cancel
	interval := s.interval
	lifetime := s.lifetime

	s.wg.Add(1)
	go s.run(gen, lifetime, interval)
}

// run is one generation of the scheduling loop.
func (s *Scheduler) run(gen, lifetime context.Context, interval time.Duration) {
	defer s.wg.Done()

	for {
		delay := Jitter(interval, s.rand())
		timer := s.clock.NewTimer(delay)
		s.logger.Debug("auto-refresh armed", "interval", interval.String(), "delay", delay.String())

		select {
		case <-gen.Done():
			timer.Stop()
			return
		case <-timer.C():
		}

		// the timer and a reconfiguration can race; a cancelled generation never fires
		if gen.Err() != nil {
			return
		}

		s.fire(lifetime)
	}
}
