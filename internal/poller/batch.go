package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kamath/whichport/internal/probe"
	"github.com/kamath/whichport/internal/store"
)

// Prober runs a single reachability check. [probe.Prober] implements it.
type Prober interface {
	Probe(ctx context.Context, target probe.Target, timeout time.Duration) probe.Result
}

// Check pairs a watch entry id with the endpoint to probe.
type Check struct {
	ID     string
	Target probe.Target
}

// Completion describes one finished probe. It is passed to the completion
// hook after the status store has been updated.
type Completion struct {
	ID        string
	Target    probe.Target
	Result    probe.Result
	CheckedAt time.Time
}

// Batch runs begin/probe/complete cycles against a status store.
//
// Every cycle goes through [store.Store.BeginCheck], so an entry that is
// already being probed is skipped rather than probed twice. Probe results
// are written as soon as each probe finishes, independently of the rest of
// the batch.
type Batch struct {
	store          store.Store
	prober         Prober
	timeout        time.Duration
	maxConcurrency int
	onComplete     func(Completion)
	logger         *slog.Logger
	now            func() time.Time
}

// NewBatch creates a [Batch].
//
// Parameters:
//   - st: Status store receiving every transition
//   - prober: Probe implementation
//   - timeout: Per-probe timeout (zero means the probe default)
//   - maxConcurrency: Maximum probes in flight per batch, zero or less for no limit
//   - onComplete: Called after each completed probe, may be nil
//   - logger: Logger for probe panics
func NewBatch(st store.Store, prober Prober, timeout time.Duration, maxConcurrency int, onComplete func(Completion), logger *slog.Logger) *Batch {
	return &Batch{
		store:          st,
		prober:         prober,
		timeout:        timeout,
		maxConcurrency: maxConcurrency,
		onComplete:     onComplete,
		logger:         logger,
		now:            time.Now,
	}
}

// CheckOne probes a single entry. It returns false without probing if a
// probe for the entry is already in flight, or if the entry was removed or
// moved to another address since c was built.
//
// A result that is stale by the time the probe returns is dropped, and
// onComplete is not called for it.
func (b *Batch) CheckOne(ctx context.Context, c Check) bool {
	target := c.Target.URL()
	if !b.store.BeginCheck(c.ID, target, b.now()) {
		return false
	}

	result := b.safeProbe(ctx, c)
	checkedAt := b.now()
	if !b.store.CompleteCheck(c.ID, target, result, checkedAt) {
		b.logger.Debug("stale check result dropped", "entry", c.ID, "url", target)
		return true
	}

	if b.onComplete != nil {
		b.onComplete(Completion{
			ID:        c.ID,
			Target:    c.Target,
			Result:    result,
			CheckedAt: checkedAt,
		})
	}
	return true
}

// CheckAll probes every entry concurrently and returns once all of them
// have completed. It reports how many probes actually ran; entries already
// in flight are skipped.
//
// A failing probe never stops the others, and each result is visible in the
// store as soon as its own probe finishes.
func (b *Batch) CheckAll(ctx context.Context, checks []Check) int {
	g := new(errgroup.Group)
	if b.maxConcurrency > 0 {
		g.SetLimit(b.maxConcurrency)
	}

	var probed atomic.Int32
	for _, c := range checks {
		g.Go(func() error {
			if b.CheckOne(ctx, c) {
				probed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return int(probed.Load())
}

// safeProbe calls the prober with panic recovery.
// A panic is logged with a correlation id and reported as an inactive result,
// so the in-flight marker is always cleared.
func (b *Batch) safeProbe(ctx context.Context, c Check) (result probe.Result) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			b.logger.Error("probe panic",
				"correlation_id", correlationID,
				"entry", c.ID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			result = probe.Inactive{
				Err: fmt.Sprintf("probe panic (correlation_id: %s)", correlationID),
			}
		}
	}()
	return b.prober.Probe(ctx, c.Target, b.timeout)
}
