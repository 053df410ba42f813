package whichport

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kamath/whichport/kv"
)

const watchlistKey = "which-port-watchlist"

// Watchlist is the ordered, persisted set of watched entries.
//
// Every successful mutation is saved to the key-value store before it
// becomes visible, and then reported to the change hook. A mutation that
// fails validation or persistence leaves both the list and the store
// untouched.
type Watchlist struct {
	mu       sync.RWMutex
	entries  []WatchEntry
	store    kv.Store
	onChange func([]WatchEntry)
	newID    func() string
	now      func() time.Time
}

// NewWatchlist loads the saved entries from store.
//
// onChange, if non-nil, receives the entries after every mutation. It is
// called with the watchlist locked, in mutation order, so it must not call
// back into the watchlist.
func NewWatchlist(store kv.Store, onChange func([]WatchEntry)) (*Watchlist, error) {
	w := &Watchlist{
		store:    store,
		onChange: onChange,
		newID:    uuid.NewString,
		now:      time.Now,
	}

	data, ok, err := store.Get(watchlistKey)
	if err != nil {
		return nil, fmt.Errorf("load watchlist: %w", err)
	}
	if ok {
		if err := json.Unmarshal(data, &w.entries); err != nil {
			return nil, fmt.Errorf("decode watchlist: %w", err)
		}
	}
	return w, nil
}

// Entries returns a copy of the entries in insertion order.
func (w *Watchlist) Entries() []WatchEntry {
	w.mu.RLock()
	defer w.mu.RUnlock()

	cp := make([]WatchEntry, len(w.entries))
	copy(cp, w.entries)
	return cp
}

// Get returns the entry with the given id.
func (w *Watchlist) Get(id string) (WatchEntry, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if i := w.indexLocked(id); i >= 0 {
		return w.entries[i], true
	}
	return WatchEntry{}, false
}

// Add appends a new entry with a fresh id.
//
// Returns [ErrInvalidPort] for an out-of-range port and [ErrDuplicateEntry]
// when the same host, port and path is already watched.
func (w *Watchlist) Add(n NewEntry) (WatchEntry, error) {
	if err := validatePort(n.Port); err != nil {
		return WatchEntry{}, err
	}

	entry := WatchEntry{
		Host:         normalizeHost(n.Host),
		Port:         n.Port,
		EndpointPath: strings.TrimSpace(n.EndpointPath),
		Label:        strings.TrimSpace(n.Label),
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conflictLocked(entry.key(), "") {
		return WatchEntry{}, fmt.Errorf("%w: %s", ErrDuplicateEntry, entry.URL())
	}

	entry.ID = w.newID()
	entry.CreatedAt = w.now()

	next := append(w.cloneLocked(), entry)
	if err := w.commitLocked(next); err != nil {
		return WatchEntry{}, err
	}
	return entry, nil
}

// Update edits an entry in place, keeping its id, creation time and position.
//
// Returns [ErrEntryNotFound], [ErrInvalidPort], or [ErrDuplicateEntry] when
// the edit would make the entry identical to another one.
func (w *Watchlist) Update(id string, u EntryUpdate) (WatchEntry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	i := w.indexLocked(id)
	if i < 0 {
		return WatchEntry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}

	updated, err := u.apply(w.entries[i])
	if err != nil {
		return WatchEntry{}, err
	}
	if w.conflictLocked(updated.key(), id) {
		return WatchEntry{}, fmt.Errorf("%w: %s", ErrDuplicateEntry, updated.URL())
	}

	next := w.cloneLocked()
	next[i] = updated
	if err := w.commitLocked(next); err != nil {
		return WatchEntry{}, err
	}
	return updated, nil
}

// Remove deletes an entry. Returns [ErrEntryNotFound] if it does not exist.
func (w *Watchlist) Remove(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	i := w.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}

	next := make([]WatchEntry, 0, len(w.entries)-1)
	next = append(next, w.entries[:i]...)
	next = append(next, w.entries[i+1:]...)
	return w.commitLocked(next)
}

// commitLocked persists next, then makes it current and fires the hook.
func (w *Watchlist) commitLocked(next []WatchEntry) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode watchlist: %w", err)
	}
	if err := w.store.Put(watchlistKey, data); err != nil {
		return fmt.Errorf("save watchlist: %w", err)
	}

	w.entries = next
	if w.onChange != nil {
		cp := make([]WatchEntry, len(next))
		copy(cp, next)
		w.onChange(cp)
	}
	return nil
}

func (w *Watchlist) cloneLocked() []WatchEntry {
	cp := make([]WatchEntry, len(w.entries), len(w.entries)+1)
	copy(cp, w.entries)
	return cp
}

func (w *Watchlist) indexLocked(id string) int {
	for i, e := range w.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// conflictLocked reports whether an entry other than skipID has key k.
func (w *Watchlist) conflictLocked(k entryKey, skipID string) bool {
	for _, e := range w.entries {
		if e.ID != skipID && e.key() == k {
			return true
		}
	}
	return false
}
