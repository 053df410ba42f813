package store

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kamath/whichport/internal/probe"
)

const testTarget = "http://localhost:3000/"

func TestNewMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	if store == nil {
		t.Fatal("NewMemoryStore() = nil")
	}

	if len(store.GetAll()) != 0 {
		t.Errorf("GetAll() = %v items, want 0", len(store.GetAll()))
	}

	if _, ok := store.Get("missing"); ok {
		t.Error("Get() on empty store should report no status")
	}
}

func TestStatus_State(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   State
	}{
		{"never probed", Status{ID: "a"}, StateUnknown},
		{"checking first time", Status{ID: "a", Checking: true}, StateChecking},
		{"checking keeps previous", Status{ID: "a", Checking: true, Result: probe.Active{}}, StateChecking},
		{"active", Status{ID: "a", Result: probe.Active{HTTPStatus: 200}}, StateActive},
		{"opaque is active", Status{ID: "a", Result: probe.Opaque{}}, StateActive},
		{"inactive", Status{ID: "a", Result: probe.Inactive{Err: "refused"}}, StateInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.State(); got != tt.want {
				t.Errorf("State() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMemoryStore_BeginCheck(t *testing.T) {
	store := NewMemoryStore()
	at := time.Now()

	if !store.BeginCheck("a", testTarget, at) {
		t.Fatal("BeginCheck() = false on idle entry, want true")
	}

	status, ok := store.Get("a")
	if !ok {
		t.Fatal("Get() should return the status created by BeginCheck")
	}
	if status.State() != StateChecking {
		t.Errorf("State() = %v, want %v", status.State(), StateChecking)
	}
	if !status.LastChecked.Equal(at) {
		t.Errorf("LastChecked = %v, want %v", status.LastChecked, at)
	}
}

func TestMemoryStore_BeginCheckTwiceIsNoop(t *testing.T) {
	store := NewMemoryStore()
	first := time.Now()

	if !store.BeginCheck("a", testTarget, first) {
		t.Fatal("first BeginCheck() = false, want true")
	}
	if store.BeginCheck("a", testTarget, first.Add(time.Second)) {
		t.Fatal("second BeginCheck() = true while in flight, want false")
	}

	status, _ := store.Get("a")
	if !status.LastChecked.Equal(first) {
		t.Errorf("LastChecked = %v, second BeginCheck should not restamp it", status.LastChecked)
	}
}

func TestMemoryStore_BeginCheckConcurrentSingleWinner(t *testing.T) {
	store := NewMemoryStore()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.BeginCheck("a", testTarget, time.Now()) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("BeginCheck() won %d times, want exactly 1", wins.Load())
	}
}

func TestMemoryStore_BeginCheckPreservesPreviousResult(t *testing.T) {
	store := NewMemoryStore()

	store.BeginCheck("a", testTarget, time.Now())
	store.CompleteCheck("a", testTarget, probe.Active{Title: "Vite App", HTTPStatus: 200}, time.Now())
	store.BeginCheck("a", testTarget, time.Now())

	status, _ := store.Get("a")
	active, ok := status.Result.(probe.Active)
	if !ok {
		t.Fatalf("Result = %T, want probe.Active kept during checking", status.Result)
	}
	if active.Title != "Vite App" {
		t.Errorf("Title = %q, want %q", active.Title, "Vite App")
	}
}

func TestMemoryStore_CompleteCheckOverwrites(t *testing.T) {
	store := NewMemoryStore()

	store.BeginCheck("a", testTarget, time.Now())
	store.CompleteCheck("a", testTarget, probe.Active{Title: "old"}, time.Now())

	store.BeginCheck("a", testTarget, time.Now())
	done := time.Now().Add(time.Second)
	store.CompleteCheck("a", testTarget, probe.Inactive{Err: probe.TimeoutMessage, TimedOut: true}, done)

	status, _ := store.Get("a")
	if status.State() != StateInactive {
		t.Errorf("State() = %v, want %v", status.State(), StateInactive)
	}
	if !status.LastChecked.Equal(done) {
		t.Errorf("LastChecked = %v, want completion time %v", status.LastChecked, done)
	}

	// in-flight marker must be cleared
	if !store.BeginCheck("a", testTarget, time.Now()) {
		t.Error("BeginCheck() after CompleteCheck = false, want true")
	}
}

func TestMemoryStore_CompleteWithoutBeginIsDropped(t *testing.T) {
	store := NewMemoryStore()

	store.CompleteCheck("ghost", testTarget, probe.Active{}, time.Now())

	if _, ok := store.Get("ghost"); ok {
		t.Error("CompleteCheck() without BeginCheck should not create a status")
	}
}

func TestMemoryStore_ReconcileEmptyRemovesAll(t *testing.T) {
	store := NewMemoryStore()
	for _, id := range []string{"a", "b", "c"} {
		store.BeginCheck(id, testTarget, time.Now())
		store.CompleteCheck(id, testTarget, probe.Active{}, time.Now())
	}

	store.Reconcile(map[string]string{})

	if n := len(store.GetAll()); n != 0 {
		t.Errorf("GetAll() = %d items after Reconcile({}), want 0", n)
	}
}

func TestMemoryStore_ReconcileKeepsExactlyLive(t *testing.T) {
	store := NewMemoryStore()
	for _, id := range []string{"a", "b", "c"} {
		store.BeginCheck(id, testTarget, time.Now())
		store.CompleteCheck(id, testTarget, probe.Active{}, time.Now())
	}

	// "d" is live but has no status; it must not be created
	store.Reconcile(map[string]string{"a": testTarget, "c": testTarget, "d": testTarget})

	all := store.GetAll()
	got := make(map[string]bool, len(all))
	for _, s := range all {
		got[s.ID] = true
	}
	if len(got) != 2 || !got["a"] || !got["c"] {
		t.Errorf("statuses after Reconcile = %v, want exactly a and c", got)
	}
}

func TestMemoryStore_ReconcileDropsInFlightCompletion(t *testing.T) {
	store := NewMemoryStore()

	store.BeginCheck("a", testTarget, time.Now())
	store.Reconcile(map[string]string{})
	store.CompleteCheck("a", testTarget, probe.Active{}, time.Now())

	if _, ok := store.Get("a"); ok {
		t.Error("completion for a removed entry should not resurrect its status")
	}
}

func TestMemoryStore_BeginCheckRefusesRemovedEntry(t *testing.T) {
	store := NewMemoryStore()
	ch := store.Subscribe()
	defer store.Unsubscribe(ch)

	// the caller read "b" before it was removed
	store.Reconcile(map[string]string{"a": testTarget})

	if store.BeginCheck("b", testTarget, time.Now()) {
		t.Fatal("BeginCheck() = true for an entry that is no longer live, want false")
	}
	if store.CompleteCheck("b", testTarget, probe.Active{}, time.Now()) {
		t.Error("CompleteCheck() = true for an entry that is no longer live, want false")
	}
	if _, ok := store.Get("b"); ok {
		t.Error("removed entry must not get a status")
	}
	select {
	case s := <-ch:
		t.Errorf("unexpected update %+v for removed entry", s)
	default:
	}
}

func TestMemoryStore_BeginCheckRefusesOldTarget(t *testing.T) {
	store := NewMemoryStore()
	store.Reconcile(map[string]string{"a": "http://localhost:4000/"})

	if store.BeginCheck("a", testTarget, time.Now()) {
		t.Error("BeginCheck() = true at the old target, want false")
	}
	if !store.BeginCheck("a", "http://localhost:4000/", time.Now()) {
		t.Error("BeginCheck() = false at the current target, want true")
	}
}

func TestMemoryStore_RetargetDropsOldProbe(t *testing.T) {
	store := NewMemoryStore()
	const newTarget = "http://localhost:4000/"

	store.Reconcile(map[string]string{"a": testTarget})
	if !store.BeginCheck("a", testTarget, time.Now()) {
		t.Fatal("BeginCheck() = false, want true")
	}

	// entry edited to a new address while the old probe runs
	store.Reconcile(map[string]string{"a": newTarget})

	if !store.BeginCheck("a", newTarget, time.Now()) {
		t.Fatal("BeginCheck() at the new target = false, want true")
	}
	if store.CompleteCheck("a", testTarget, probe.Active{Title: "OLD"}, time.Now()) {
		t.Error("CompleteCheck() at the old target = true, want false")
	}

	status, _ := store.Get("a")
	if status.State() != StateChecking {
		t.Errorf("State() = %v after old completion, want %v", status.State(), StateChecking)
	}

	if !store.CompleteCheck("a", newTarget, probe.Active{Title: "NEW"}, time.Now()) {
		t.Fatal("CompleteCheck() at the new target = false, want true")
	}
	status, _ = store.Get("a")
	if active, ok := status.Result.(probe.Active); !ok || active.Title != "NEW" {
		t.Errorf("Result = %+v, want the new target's result", status.Result)
	}
}

func TestMemoryStore_ReconcileDropsStatusOfOldTarget(t *testing.T) {
	store := NewMemoryStore()
	store.BeginCheck("a", testTarget, time.Now())
	store.CompleteCheck("a", testTarget, probe.Active{Title: "OLD"}, time.Now())

	store.Reconcile(map[string]string{"a": "http://localhost:4000/"})

	if _, ok := store.Get("a"); ok {
		t.Error("status probed at the old target should be dropped")
	}
}

func TestMemoryStore_Subscribe(t *testing.T) {
	store := NewMemoryStore()

	ch := store.Subscribe()
	if ch == nil {
		t.Fatal("Subscribe() = nil")
	}

	go store.BeginCheck("a", testTarget, time.Now())

	select {
	case status := <-ch:
		if status.ID != "a" || status.State() != StateChecking {
			t.Errorf("received %+v, want checking status for a", status)
		}
	case <-time.After(1 * time.Second):
		t.Error("Subscribe() channel did not receive update")
	}
}

func TestMemoryStore_SubscribeSeesBeginAndComplete(t *testing.T) {
	store := NewMemoryStore()
	ch := store.Subscribe()
	defer store.Unsubscribe(ch)

	store.BeginCheck("a", testTarget, time.Now())
	store.CompleteCheck("a", testTarget, probe.Opaque{}, time.Now())

	want := []State{StateChecking, StateActive}
	for i, w := range want {
		select {
		case status := <-ch:
			if status.State() != w {
				t.Errorf("update %d State() = %v, want %v", i, status.State(), w)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing update %d", i)
		}
	}
}

func TestMemoryStore_Unsubscribe(t *testing.T) {
	store := NewMemoryStore()

	ch := store.Subscribe()
	store.Unsubscribe(ch)

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("Unsubscribe() channel should be closed")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Unsubscribe() channel should be closed immediately")
	}

	// second call is a no-op
	store.Unsubscribe(ch)
}

func TestMemoryStore_SlowSubscriberDoesNotBlock(t *testing.T) {
	store := NewMemoryStore()

	// never read
	_ = store.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			store.BeginCheck("a", testTarget, time.Now())
			store.CompleteCheck("a", testTarget, probe.Active{}, time.Now())
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("check transitions blocked on slow subscriber")
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()

	var wg sync.WaitGroup
	numGoroutines := 10
	numUpdates := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numUpdates; j++ {
				if store.BeginCheck("api", testTarget, time.Now()) {
					store.CompleteCheck("api", testTarget, probe.Active{}, time.Now())
				}
			}
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numUpdates; j++ {
				_ = store.GetAll()
				store.Reconcile(map[string]string{"api": testTarget})
			}
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := store.Subscribe()
			time.Sleep(10 * time.Millisecond)
			store.Unsubscribe(ch)
		}()
	}

	wg.Wait()
}
