package store

import (
	"sync"
	"time"

	"github.com/kamath/whichport/internal/probe"
)

const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// Statuses are keyed by entry id. The status map, the in-flight set and the
// live set share one mutex; every check transition reads and writes them
// under it.
//
// Until the first [MemoryStore.Reconcile] every id is treated as live.
//
// Subscribers receive updates via buffered channels (buffer size 100). Updates
// are sent non-blocking; if a subscriber's buffer is full, the update is dropped
// for that subscriber to prevent blocking the probes.
type MemoryStore struct {
	mu       sync.RWMutex
	statuses map[string]Status
	inFlight map[string]string // id -> target being probed
	live     map[string]string // nil until the first Reconcile

	subscribers map[chan Status]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory [Store] implementation.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		statuses:    make(map[string]Status),
		inFlight:    make(map[string]string),
		subscribers: make(map[chan Status]struct{}),
	}
}

// BeginCheck marks id as checking at target and stamps LastChecked with at.
//
// The previous Result is kept so the last known title and latency stay
// visible while the new probe runs. Returns false without any change when a
// probe for id is already in flight, or when id was removed or moved to
// another target since the caller read it.
func (m *MemoryStore) BeginCheck(id, target string, at time.Time) bool {
	m.mu.Lock()
	if !m.isLiveLocked(id, target) {
		m.mu.Unlock()
		return false
	}
	if _, busy := m.inFlight[id]; busy {
		m.mu.Unlock()
		return false
	}
	m.inFlight[id] = target

	status := m.statuses[id]
	status.ID = id
	status.Target = target
	status.Checking = true
	status.LastChecked = at
	m.statuses[id] = status
	m.mu.Unlock()

	m.notifySubscribers(status)
	return true
}

// CompleteCheck replaces the status of id with result and clears the
// in-flight marker.
//
// If id is no longer in flight at target, because [MemoryStore.Reconcile]
// dropped or retargeted it while the probe ran, the result is discarded and
// false is returned.
func (m *MemoryStore) CompleteCheck(id, target string, result probe.Result, at time.Time) bool {
	m.mu.Lock()
	if t, busy := m.inFlight[id]; !busy || t != target {
		m.mu.Unlock()
		return false
	}
	delete(m.inFlight, id)

	status := Status{
		ID:          id,
		Target:      target,
		LastChecked: at,
		Result:      result,
	}
	m.statuses[id] = status
	m.mu.Unlock()

	m.notifySubscribers(status)
	return true
}

// Reconcile replaces the live set with live.
//
// Statuses and in-flight markers are deleted for ids not in live and for ids
// whose target changed, so a result for an old address never lands on the
// edited entry.
func (m *MemoryStore) Reconcile(live map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.live = make(map[string]string, len(live))
	for id, target := range live {
		m.live[id] = target
	}

	for id, status := range m.statuses {
		if !m.isLiveLocked(id, status.Target) {
			delete(m.statuses, id)
		}
	}
	for id, target := range m.inFlight {
		if !m.isLiveLocked(id, target) {
			delete(m.inFlight, id)
		}
	}
}

func (m *MemoryStore) isLiveLocked(id, target string) bool {
	if m.live == nil {
		return true
	}
	t, ok := m.live[id]
	return ok && t == target
}

// Get returns the stored status of id.
func (m *MemoryStore) Get(id string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.statuses[id]
	return status, ok
}

// GetAll returns a snapshot of all currently stored statuses.
//
// The returned slice is a copy; modifications do not affect the store.
// Order is not guaranteed.
func (m *MemoryStore) GetAll() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]Status, 0, len(m.statuses))
	for _, status := range m.statuses {
		results = append(results, status)
	}
	return results
}

// Subscribe creates a new subscription and returns a channel for receiving updates.
//
// The returned channel has a buffer of 100 messages. If the buffer fills
// (slow consumer), new updates are dropped for this subscriber.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan Status {
	ch := make(chan Status, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Status) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the status to all active subscribers without blocking.
func (m *MemoryStore) notifySubscribers(status Status) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- status:
		default:
			// subscriber is slow, drop the message
		}
	}
}
