package search

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"rental-process/internal/common/logger"
	"rental-process/internal/models"
)

// QueryFunc runs one lookup for a filter.
type QueryFunc[F, T any] func(ctx context.Context, filter F) (T, error)

type ViewOptions[F any] struct {
	// Debounce delays dispatch while DebounceWhen reports a change worth waiting on.
	Debounce     time.Duration
	DebounceWhen func(prev, next F) bool
	Timeout      time.Duration
	Clock        clockwork.Clock
}

// View feeds filter changes through a sequencer, optionally debounced.
type View[F, T any] struct {
	seq   *Sequencer[T]
	query QueryFunc[F, T]
	opts  ViewOptions[F]

	mu     sync.Mutex
	last   F
	timer  clockwork.Timer
	gen    uint64
	closed bool
}

func NewView[F, T any](name string, query QueryFunc[F, T], opts ViewOptions[F], log logger.Logger) *View[F, T] {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &View[F, T]{
		seq:   NewSequencer[T](name, log),
		query: query,
		opts:  opts,
	}
}

// Update records the new filter. It returns the dispatched ticket, or zero
// with deferred set when the dispatch waits for the debounce window.
func (v *View[F, T]) Update(filter F) (ticket uint64, deferred bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return 0, false
	}

	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
	debounce := v.opts.Debounce > 0 && v.opts.DebounceWhen != nil && v.opts.DebounceWhen(v.last, filter)
	v.last = filter

	v.gen++
	if debounce {
		gen := v.gen
		v.timer = v.opts.Clock.AfterFunc(v.opts.Debounce, func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			if v.closed || gen != v.gen {
				return
			}
			v.timer = nil
			v.dispatch(filter)
		})
		return 0, true
	}
	return v.dispatch(filter), false
}

func (v *View[F, T]) dispatch(filter F) uint64 {
	timeout := v.opts.Timeout
	return v.seq.Dispatch(context.Background(), func(ctx context.Context) (T, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return v.query(ctx, filter)
	})
}

func (v *View[F, T]) Current() Result[T] { return v.seq.Current() }

func (v *View[F, T]) Latest() uint64 { return v.seq.Latest() }

// Wait blocks until in-flight queries return. Pending debounces are not waited on.
func (v *View[F, T]) Wait() { v.seq.Wait() }

func (v *View[F, T]) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
}

// Views is the pair of admin search views owned by one session.
type Views struct {
	Tenants *View[models.TenantFilter, []models.TenantSummary]
	Units   *View[models.UnitFilter, []models.UnitSummary]
}

// NewViews debounces tenant searches only when the free text changes.
// Unit filter changes dispatch at once.
func NewViews(tenants TenantSearcher, units UnitSearcher, debounce, timeout time.Duration, clock clockwork.Clock, log logger.Logger) *Views {
	return &Views{
		Tenants: NewView[models.TenantFilter, []models.TenantSummary](ViewTenants, tenants.SearchTenants, ViewOptions[models.TenantFilter]{
			Debounce: debounce,
			DebounceWhen: func(prev, next models.TenantFilter) bool {
				return prev.Text != next.Text
			},
			Timeout: timeout,
			Clock:   clock,
		}, log),
		Units: NewView[models.UnitFilter, []models.UnitSummary](ViewUnits, units.SearchAvailableUnits, ViewOptions[models.UnitFilter]{
			Timeout: timeout,
			Clock:   clock,
		}, log),
	}
}

func (v *Views) Close() {
	v.Tenants.Close()
	v.Units.Close()
}
