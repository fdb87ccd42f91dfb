// Package synchronizer coalesces wizard edits into debounced process store writes.
package synchronizer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"rental-process/internal/common/idcache"
	"rental-process/internal/common/logger"
	"rental-process/internal/common/metrics"
	"rental-process/internal/common/observability"
	"rental-process/internal/models"
	"rental-process/internal/store/processstore"
	"rental-process/internal/wizard/state"
)

const (
	DefaultWindow       = 750 * time.Millisecond
	DefaultWriteTimeout = 10 * time.Second

	opCreate = "create"
	opUpdate = "update"
)

type Options struct {
	Window        time.Duration
	WriteTimeout  time.Duration
	Clock         clockwork.Clock
	Logger        logger.Logger
	Observability *observability.Observability
}

// Synchronizer owns the single pending write of one process.
type Synchronizer struct {
	store        processstore.Store
	container    *state.Container
	cache        idcache.KV
	clock        clockwork.Clock
	window       time.Duration
	writeTimeout time.Duration
	logger       logger.Logger
	obs          *observability.Observability

	mu      sync.Mutex
	pending models.Patch
	step    models.Step
	dirty   bool
	timer   clockwork.Timer
	closed  bool
	holds   int

	// writeMu serialises writes so a write issued during an in-flight create
	// sees the new id and updates.
	writeMu sync.Mutex
}

func New(store processstore.Store, container *state.Container, cache idcache.KV, opts Options) *Synchronizer {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	return &Synchronizer{
		store:        store,
		container:    container,
		cache:        cache,
		clock:        opts.Clock,
		window:       opts.Window,
		writeTimeout: opts.WriteTimeout,
		logger:       logger.ForComponent(opts.Logger, "synchronizer"),
		obs:          opts.Observability,
	}
}

// Schedule merges fragment into the pending write and restarts the quiescence
// window. With immediate set the write runs on the caller's goroutine.
func (s *Synchronizer) Schedule(fragment models.Patch, step models.Step, immediate bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = s.pending.Merge(fragment)
	if step.Valid() {
		s.step = step
	}
	s.dirty = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
		metrics.CoalescedSchedules.Inc()
	}
	if immediate {
		s.mu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
		defer cancel()
		_ = s.flush(ctx)
		return
	}
	s.timer = s.clock.AfterFunc(s.window, s.fire)
	s.mu.Unlock()
}

// Flush writes whatever is pending now and returns the store error, if any.
func (s *Synchronizer) Flush(ctx context.Context) error {
	return s.flush(ctx)
}

// Pending reports whether a write is waiting for its window or a retry.
func (s *Synchronizer) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Hold parks writes until Release, after waiting out any write already in
// flight. Edits keep merging into the pending fragment meanwhile.
func (s *Synchronizer) Hold() {
	s.mu.Lock()
	s.holds++
	s.mu.Unlock()

	s.writeMu.Lock()
	s.writeMu.Unlock()
}

// Release ends a Hold and writes anything that was parked, against whatever
// id the container holds by then.
func (s *Synchronizer) Release() error {
	s.mu.Lock()
	if s.holds > 0 {
		s.holds--
	}
	parked := s.holds == 0 && s.dirty && !s.closed
	s.mu.Unlock()
	if !parked {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()
	return s.flush(ctx)
}

// Close stops the timer and drops the pending fragment. Later schedules and
// callbacks that already fired are ignored.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.pending, s.step, s.dirty = models.Patch{}, 0, false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Synchronizer) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Synchronizer) fire() {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()
	_ = s.flush(ctx)
}

func (s *Synchronizer) flush(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.closed || s.holds > 0 || !s.dirty {
		s.mu.Unlock()
		return nil
	}
	patch, step := s.pending, s.step
	s.pending, s.step, s.dirty = models.Patch{}, 0, false
	s.mu.Unlock()

	err := s.write(ctx, patch, step)
	if err != nil && !s.isClosed() {
		// Keep the failed fragment under anything scheduled since, so the next
		// write carries it. No timer is armed for it.
		s.mu.Lock()
		s.pending = patch.Merge(s.pending)
		if !s.step.Valid() {
			s.step = step
		}
		s.dirty = true
		s.mu.Unlock()
	}
	return err
}

func (s *Synchronizer) write(ctx context.Context, patch models.Patch, step models.Step) error {
	id := s.container.ID()
	tenantID, unitID := s.container.Refs()
	start := s.clock.Now()

	op := opUpdate
	var err error
	if id == "" {
		op = opCreate
		payload := s.container.Payload()
		patch.ApplyTo(&payload)
		if !step.Valid() {
			step = s.container.Step()
		}

		var newID string
		newID, err = s.store.Create(ctx, payload, step, tenantID, unitID)
		if err == nil {
			id = newID
			s.container.SetID(newID)
			s.cache.Set(ctx, idcache.KeyProcessID, newID)
		}
	} else {
		err = s.store.Update(ctx, id, patch, step, tenantID, unitID)
		if errors.Is(err, processstore.ErrProcessNotFound) {
			s.container.SetID("")
			s.cache.Remove(ctx, idcache.KeyProcessID)
		}
	}

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.ProcessWrites.WithLabelValues(op, outcome).Inc()
	s.obs.RecordWrite(ctx, op, outcome, s.clock.Since(start))

	fields := map[string]interface{}{
		"op":        op,
		"processId": id,
		"step":      int(step),
	}
	if err != nil {
		s.logger.WithError(err).Warn("process write failed", fields)
		return err
	}
	s.logger.Debug("process written", fields)
	return nil
}
