package poller

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTimer struct {
	d       time.Duration
	c       chan time.Time
	stopped atomic.Bool
}

func (t *fakeTimer) C() <-chan time.Time { return t.c }

func (t *fakeTimer) Stop() bool { return !t.stopped.Swap(true) }

// fire delivers a tick as the real timer would.
func (t *fakeTimer) fire() { t.c <- time.Now() }

// fakeClock hands every armed timer to the test instead of waiting.
type fakeClock struct {
	timers chan *fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{timers: make(chan *fakeTimer, 64)}
}

func (c *fakeClock) Now() time.Time { return time.Now() }

func (c *fakeClock) NewTimer(d time.Duration) Timer {
	t := &fakeTimer{d: d, c: make(chan time.Time, 1)}
	c.timers <- t
	return t
}

// next waits for the scheduler to arm a timer.
func (c *fakeClock) next(t *testing.T) *fakeTimer {
	t.Helper()
	select {
	case tm := <-c.timers:
		return tm
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for a timer to be armed")
		return nil
	}
}

// expectNone asserts no timer gets armed within wait.
func (c *fakeClock) expectNone(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case tm := <-c.timers:
		t.Fatalf("unexpected timer armed for %v", tm.d)
	case <-time.After(wait):
	}
}

// sequence returns a jitter source cycling through values.
func sequence(values ...float64) func() float64 {
	var mu sync.Mutex
	i := 0
	return func() float64 {
		mu.Lock()
		defer mu.Unlock()
		v := values[i%len(values)]
		i++
		return v
	}
}

// counter is a scheduler callback that records each firing.
type counter struct {
	fired chan struct{}
	n     atomic.Int32
}

func newCounter() *counter {
	return &counter{fired: make(chan struct{}, 64)}
}

func (c *counter) fire(context.Context) {
	c.n.Add(1)
	c.fired <- struct{}{}
}

func (c *counter) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.fired:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for callback")
	}
}

func TestJitter_Bounds(t *testing.T) {
	interval := 10 * time.Second

	assert.Equal(t, 9*time.Second, Jitter(interval, 0))
	assert.Equal(t, interval, Jitter(interval, 0.5))

	hi := Jitter(interval, 0.999999)
	assert.Less(t, hi, 11*time.Second)
	assert.Greater(t, hi, 10990*time.Millisecond)
}

func TestScheduler_ArmsWithinJitterEachFiring(t *testing.T) {
	clock := newFakeClock()
	cb := newCounter()
	s := NewScheduler(cb.fire, testLogger(), WithClock(clock), WithRand(sequence(0.1, 0.9, 0.5)))

	s.Configure(true, 10*time.Second)
	s.Start(context.Background())
	defer s.Stop()

	assert.Equal(t, SchedulerScheduled, s.State())

	var delays []time.Duration
	for i := 0; i < 3; i++ {
		tm := clock.next(t)
		delays = append(delays, tm.d)
		assert.GreaterOrEqual(t, tm.d, 9*time.Second)
		assert.LessOrEqual(t, tm.d, 11*time.Second)

		tm.fire()
		cb.wait(t)
	}

	// jitter is recomputed per firing, not fixed at configuration time
	assert.NotEqual(t, delays[0], delays[1])
	assert.NotEqual(t, delays[1], delays[2])
	assert.EqualValues(t, 3, cb.n.Load())
}

func TestScheduler_DisabledArmsNothing(t *testing.T) {
	clock := newFakeClock()
	cb := newCounter()
	s := NewScheduler(cb.fire, testLogger(), WithClock(clock))

	s.Configure(false, 10*time.Second)
	s.Start(context.Background())
	defer s.Stop()

	clock.expectNone(t, 50*time.Millisecond)
	assert.Equal(t, SchedulerStopped, s.State())
}

func TestScheduler_NonPositiveIntervalArmsNothing(t *testing.T) {
	clock := newFakeClock()
	s := NewScheduler(newCounter().fire, testLogger(), WithClock(clock))

	s.Configure(true, 0)
	s.Start(context.Background())
	defer s.Stop()

	clock.expectNone(t, 50*time.Millisecond)
	assert.Equal(t, SchedulerStopped, s.State())
}

func TestScheduler_IntervalChangeCancelsPending(t *testing.T) {
	clock := newFakeClock()
	cb := newCounter()
	s := NewScheduler(cb.fire, testLogger(), WithClock(clock))

	s.Configure(true, 10*time.Second)
	s.Start(context.Background())
	defer s.Stop()

	stale := clock.next(t)

	s.Configure(true, 30*time.Second)
	fresh := clock.next(t)

	require.Eventually(t, stale.stopped.Load, time.Second, 5*time.Millisecond,
		"pending timer should be stopped on reconfiguration")
	assert.GreaterOrEqual(t, fresh.d, 27*time.Second)
	assert.LessOrEqual(t, fresh.d, 33*time.Second)

	// a tick from the old timer must not reach the callback
	stale.fire()
	select {
	case <-cb.fired:
		t.Fatal("stale timer fired the callback")
	case <-time.After(50 * time.Millisecond):
	}

	fresh.fire()
	cb.wait(t)
	assert.EqualValues(t, 1, cb.n.Load())
}

func TestScheduler_DisableCancelsPending(t *testing.T) {
	clock := newFakeClock()
	cb := newCounter()
	s := NewScheduler(cb.fire, testLogger(), WithClock(clock))

	s.Configure(true, 10*time.Second)
	s.Start(context.Background())
	defer s.Stop()

	pending := clock.next(t)
	s.Configure(false, 10*time.Second)

	require.Eventually(t, pending.stopped.Load, time.Second, 5*time.Millisecond)
	assert.Equal(t, SchedulerStopped, s.State())
	clock.expectNone(t, 50*time.Millisecond)

	// re-enabling arms a fresh timer
	s.Configure(true, 5*time.Second)
	tm := clock.next(t)
	assert.GreaterOrEqual(t, tm.d, 4500*time.Millisecond)
	assert.LessOrEqual(t, tm.d, 5500*time.Millisecond)
}

func TestScheduler_ConfigureBeforeStartOnlyRecords(t *testing.T) {
	clock := newFakeClock()
	s := NewScheduler(newCounter().fire, testLogger(), WithClock(clock))

	s.Configure(true, 10*time.Second)
	clock.expectNone(t, 30*time.Millisecond)

	s.Start(context.Background())
	defer s.Stop()
	clock.next(t)
}

func TestScheduler_RoundsDoNotOverlap(t *testing.T) {
	clock := newFakeClock()
	release := make(chan struct{})
	var running, maxRunning atomic.Int32

	fire := func(context.Context) {
		n := running.Add(1)
		if n > maxRunning.Load() {
			maxRunning.Store(n)
		}
		<-release
		running.Add(-1)
	}

	s := NewScheduler(fire, testLogger(), WithClock(clock))
	s.Configure(true, 10*time.Second)
	s.Start(context.Background())

	clock.next(t).fire()

	// next timer is armed only after the round finishes
	clock.expectNone(t, 50*time.Millisecond)
	close(release)
	clock.next(t)

	s.Stop()
	assert.EqualValues(t, 1, maxRunning.Load())
}

func TestScheduler_FiresWithRealClock(t *testing.T) {
	cb := newCounter()
	s := NewScheduler(cb.fire, testLogger())

	s.Configure(true, 20*time.Millisecond)
	s.Start(context.Background())

	cb.wait(t)
	cb.wait(t)
	s.Stop()

	n := cb.n.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, n, cb.n.Load(), "no firing after Stop")
}

// TestScheduler_StopBeforeStart verifies that calling Stop() on a scheduler
// that was never started does not panic and is a safe no-op.
func TestScheduler_StopBeforeStart(t *testing.T) {
	s := NewScheduler(newCounter().fire, testLogger())

	s.Stop()
}

// TestScheduler_StopTwice verifies that Stop() is idempotent.
func TestScheduler_StopTwice(t *testing.T) {
	s := NewScheduler(newCounter().fire, testLogger())
	s.Configure(true, time.Minute)
	s.Start(context.Background())

	s.Stop()
	s.Stop()
	assert.Equal(t, SchedulerStopped, s.State())
}

// TestScheduler_StopBeforeStartThenStart verifies that Start after Stop
// never arms a timer.
func TestScheduler_StopBeforeStartThenStart(t *testing.T) {
	clock := newFakeClock()
	s := NewScheduler(newCounter().fire, testLogger(), WithClock(clock))
	s.Configure(true, time.Minute)

	s.Stop()
	s.Start(context.TODO())
	s.Configure(true, time.Second)

	clock.expectNone(t, 30*time.Millisecond)
	s.Stop()
}

// TestScheduler_StartTwice verifies that Start() does not spawn a second loop.
func TestScheduler_StartTwice(t *testing.T) {
	clock := newFakeClock()
	s := NewScheduler(newCounter().fire, testLogger(), WithClock(clock))
	s.Configure(true, time.Minute)

	s.Start(context.Background())
	s.Start(context.Background())
	defer s.Stop()

	clock.next(t)
	clock.expectNone(t, 30*time.Millisecond)
}

// TestScheduler_ContextCancellation verifies that cancelling the parent
// context stops the scheduler.
func TestScheduler_ContextCancellation(t *testing.T) {
	clock := newFakeClock()
	s := NewScheduler(newCounter().fire, testLogger(), WithClock(clock))
	s.Configure(true, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	pending := clock.next(t)

	cancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop() did not return after context cancellation")
	}
	assert.True(t, pending.stopped.Load())
}

// TestScheduler_ConcurrentConfigure verifies reconfiguration from many
// goroutines leaves exactly one loop behind.
func TestScheduler_ConcurrentConfigure(t *testing.T) {
	cb := newCounter()
	s := NewScheduler(cb.fire, testLogger())
	s.Start(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Configure(i%2 == 0, time.Duration(i+1)*time.Hour)
		}(i)
	}
	wg.Wait()

	s.Configure(true, time.Hour)
	assert.Equal(t, SchedulerScheduled, s.State())
	s.Stop()
	assert.Equal(t, SchedulerStopped, s.State())
	assert.EqualValues(t, 0, cb.n.Load())
}
