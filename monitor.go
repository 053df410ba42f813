package whichport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kamath/whichport/internal/poller"
	"github.com/kamath/whichport/internal/probe"
	"github.com/kamath/whichport/internal/store"
	"github.com/kamath/whichport/kv"
)

const subscriberBuffer = 100

// ErrClosed is returned by [Monitor.Start] after [Monitor.Close].
var ErrClosed = errors.New("monitor closed")

// Monitor watches a list of local endpoints and keeps their liveness current.
//
// Monitor ties together the watchlist, the status store, the prober and the
// auto-refresh scheduler. It is created using [New] with functional options
// and driven with [Monitor.Start]. All methods are safe for concurrent use.
//
// The typical lifecycle is:
//
//	m, err := whichport.New(whichport.WithStore(fileStore))
//	if err != nil {
//	    slog.Error("failed to create monitor", "error", err)
//	    os.Exit(1)
//	}
//	defer m.Close()
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	m.Start(ctx) // blocks until context cancelled
type Monitor struct {
	logger    *slog.Logger
	timeout   time.Duration
	kv        kv.Store
	watchlist *Watchlist
	statuses  *store.MemoryStore
	prober    *probe.Prober
	batch     *poller.Batch
	scheduler *poller.Scheduler
	callbacks []func(EntryStatus)

	refreshMu sync.Mutex
	refresh   AutoRefreshConfig

	// ctx bounds background checks; cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool
}

// New creates a [Monitor], loading any saved entries and auto-refresh
// configuration from the store.
//
// Defaults:
//   - Timeout: 5 seconds
//   - Auto-refresh: enabled, every 10 seconds
//   - Store: in memory
//   - Max concurrency: unlimited
//
// Returns an error if any option is invalid or the saved state cannot be read.
func New(opts ...Option) (*Monitor, error) {
	cfg := &monitorConfig{
		timeout:     probe.DefaultTimeout,
		autoRefresh: DefaultAutoRefresh,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.store == nil {
		cfg.store = kv.NewMemoryStore()
	}

	refresh, err := loadAutoRefresh(cfg.store, cfg.autoRefresh)
	if err != nil {
		return nil, err
	}

	statuses := store.NewMemoryStore()
	watchlist, err := NewWatchlist(cfg.store, func(entries []WatchEntry) {
		statuses.Reconcile(liveTargets(entries))
	})
	if err != nil {
		return nil, err
	}
	statuses.Reconcile(liveTargets(watchlist.Entries()))

	m := &Monitor{
		logger:    logger,
		timeout:   cfg.timeout,
		kv:        cfg.store,
		watchlist: watchlist,
		statuses:  statuses,
		prober:    probe.NewProber(cfg.transport),
		callbacks: cfg.statusCallbacks,
		refresh:   refresh,
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.batch = poller.NewBatch(statuses, m.prober, cfg.timeout, cfg.maxConcurrency, m.handleCompletion, logger)
	m.scheduler = poller.NewScheduler(func(ctx context.Context) {
		m.CheckAll(ctx)
	}, logger)
	m.scheduler.Configure(refresh.Enabled, refresh.Interval())

	return m, nil
}

// Start checks every entry once, then re-checks them on the auto-refresh
// schedule until ctx is cancelled or the monitor is closed.
//
// Start is a blocking call. Returns nil on shutdown, [ErrClosed] if the
// monitor was closed, and an error if Start was already called.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	switch {
	case m.closed:
		m.mu.Unlock()
		return ErrClosed
	case m.started:
		m.mu.Unlock()
		return errors.New("monitor already started")
	}
	m.started = true
	m.mu.Unlock()

	refresh := m.AutoRefresh()
	m.logger.Info("whichport starting",
		"entry_count", len(m.watchlist.Entries()),
		"auto_refresh", refresh.Enabled,
		"interval", refresh.Interval().String(),
		"timeout", m.timeout.String(),
	)

	if ctx.Err() != nil {
		return nil
	}

	m.CheckAll(ctx)
	m.scheduler.Start(ctx)

	select {
	case <-ctx.Done():
	case <-m.ctx.Done():
	}
	m.scheduler.Stop()
	m.logger.Info("whichport stopped")
	return nil
}

// Close stops auto-refresh, waits for background checks and releases idle
// connections. Close is idempotent.
func (m *Monitor) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.scheduler.Stop()
	m.wg.Wait()
	m.prober.Close()
	return nil
}

// Entries returns the watched entries in insertion order.
func (m *Monitor) Entries() []WatchEntry {
	return m.watchlist.Entries()
}

// Entry returns the entry with the given id.
func (m *Monitor) Entry(id string) (WatchEntry, bool) {
	return m.watchlist.Get(id)
}

// AddEntry adds an entry and checks it once in the background.
//
// Duplicates are rejected with [ErrDuplicateEntry]; nothing is saved and no
// status changes.
func (m *Monitor) AddEntry(n NewEntry) (WatchEntry, error) {
	entry, err := m.watchlist.Add(n)
	if err != nil {
		return WatchEntry{}, err
	}

	m.logger.Info("entry added", "entry", entry.ID, "url", entry.URL())
	m.checkInBackground(entry)
	return entry, nil
}

// UpdateEntry edits an entry. If its address changed it is checked again in
// the background, and the result of a check still running against the old
// address is discarded.
func (m *Monitor) UpdateEntry(id string, u EntryUpdate) (WatchEntry, error) {
	before, ok := m.watchlist.Get(id)
	if !ok {
		return WatchEntry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}

	updated, err := m.watchlist.Update(id, u)
	if err != nil {
		return WatchEntry{}, err
	}

	if updated.key() != before.key() {
		m.logger.Info("entry address changed", "entry", id, "from", before.URL(), "to", updated.URL())
		m.checkInBackground(updated)
	}
	return updated, nil
}

// RemoveEntry stops watching an entry and drops its status.
func (m *Monitor) RemoveEntry(id string) error {
	if err := m.watchlist.Remove(id); err != nil {
		return err
	}
	m.logger.Info("entry removed", "entry", id)
	return nil
}

// CheckAll checks every entry concurrently and returns once all checks have
// finished. Each status is updated as soon as its own check finishes.
// Entries already being checked are skipped; the returned count excludes them.
func (m *Monitor) CheckAll(ctx context.Context) int {
	entries := m.watchlist.Entries()
	checks := make([]poller.Check, len(entries))
	for i, e := range entries {
		checks[i] = checkFor(e)
	}
	return m.batch.CheckAll(ctx, checks)
}

// CheckOne checks a single entry and returns once the check has finished.
// It reports false if a check for the entry was already running.
func (m *Monitor) CheckOne(ctx context.Context, id string) (bool, error) {
	entry, ok := m.watchlist.Get(id)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	return m.batch.CheckOne(ctx, checkFor(entry)), nil
}

// Status returns the current status of an entry. An entry that has not been
// checked yet is [StatusUnknown].
func (m *Monitor) Status(id string) (PortStatus, error) {
	if _, ok := m.watchlist.Get(id); !ok {
		return PortStatus{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	return m.statusOf(id), nil
}

// Statuses returns the status of every entry in watchlist order.
func (m *Monitor) Statuses() []PortStatus {
	entries := m.watchlist.Entries()
	out := make([]PortStatus, len(entries))
	for i, e := range entries {
		out[i] = m.statusOf(e.ID)
	}
	return out
}

// Snapshot returns every entry with its status, in watchlist order.
func (m *Monitor) Snapshot() []EntryStatus {
	entries := m.watchlist.Entries()
	out := make([]EntryStatus, len(entries))
	for i, e := range entries {
		out[i] = EntryStatus{Entry: e, Status: m.statusOf(e.ID)}
	}
	return out
}

// Subscribe streams every status change until ctx is cancelled or the
// monitor is closed, then closes the channel.
//
// The channel is buffered; updates are dropped for a subscriber that falls
// behind rather than slowing checks down.
func (m *Monitor) Subscribe(ctx context.Context) <-chan PortStatus {
	in := m.statuses.Subscribe()
	out := make(chan PortStatus, subscriberBuffer)

	go func() {
		defer close(out)
		defer m.statuses.Unsubscribe(in)

		for {
			select {
			case <-ctx.Done():
				return
			case <-m.ctx.Done():
				return
			case s, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- toPortStatus(s):
				default:
				}
			}
		}
	}()

	return out
}

// AutoRefresh returns the current auto-refresh configuration.
func (m *Monitor) AutoRefresh() AutoRefreshConfig {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()
	return m.refresh
}

// SetAutoRefresh saves a new auto-refresh configuration and reschedules.
// The interval is clamped to [MinIntervalSeconds, MaxIntervalSeconds]; the
// applied configuration is returned.
//
// Any pending refresh is cancelled and a new one is scheduled from the new
// interval. A refresh already running is not interrupted.
func (m *Monitor) SetAutoRefresh(c AutoRefreshConfig) (AutoRefreshConfig, error) {
	c = c.Normalize()

	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	if err := saveAutoRefresh(m.kv, c); err != nil {
		return m.refresh, err
	}
	m.refresh = c
	m.scheduler.Configure(c.Enabled, c.Interval())

	m.logger.Info("auto-refresh updated", "enabled", c.Enabled, "interval", c.Interval().String())
	return c, nil
}

// Timeout returns the per-check timeout.
func (m *Monitor) Timeout() time.Duration {
	return m.timeout
}

func (m *Monitor) statusOf(id string) PortStatus {
	if s, ok := m.statuses.Get(id); ok {
		return toPortStatus(s)
	}
	return unknownStatus(id)
}

// checkInBackground checks one entry without blocking the caller.
// It does nothing once the monitor is closed.
func (m *Monitor) checkInBackground(entry WatchEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.batch.CheckOne(m.ctx, checkFor(entry))
	}()
}

// handleCompletion logs a finished check and runs the status callbacks.
func (m *Monitor) handleCompletion(c poller.Completion) {
	status := toPortStatus(store.Status{ID: c.ID, LastChecked: c.CheckedAt, Result: c.Result})

	// DEBUG for success to reduce noise
	logAttrs := []any{
		"status", status.Status,
		"entry", c.ID,
		"url", c.Target.URL(),
		"latency_ms", c.Result.Latency().Milliseconds(),
	}
	if status.Status == StatusInactive {
		m.logger.Warn("check completed with error", append(logAttrs, "error", status.Error)...)
	} else {
		m.logger.Debug("check completed", logAttrs...)
	}

	if len(m.callbacks) == 0 {
		return
	}
	// removed while the check ran
	entry, ok := m.watchlist.Get(c.ID)
	if !ok {
		return
	}
	result := EntryStatus{Entry: entry, Status: status}
	for _, cb := range m.callbacks {
		invokeCallbackSafe(cb, result, m.logger)
	}
}

func checkFor(e WatchEntry) poller.Check {
	return poller.Check{ID: e.ID, Target: e.target()}
}

// liveTargets maps each entry id to the URL it is probed at.
func liveTargets(entries []WatchEntry) map[string]string {
	live := make(map[string]string, len(entries))
	for _, e := range entries {
		live[e.ID] = e.URL()
	}
	return live
}

// invokeCallbackSafe calls a status callback with panic recovery.
// Panics are logged with a correlation id but do not propagate.
func invokeCallbackSafe(cb func(EntryStatus), result EntryStatus, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("status callback panicked",
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
				"entry", result.Entry.ID,
				"stack", string(debug.Stack()),
			)
		}
	}()
	cb(result)
}
