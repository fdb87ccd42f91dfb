// Package search runs tenant and unit lookups and guards their views against
// out-of-order responses.
package search

import (
	"context"
	"sync"
	"sync/atomic"

	"rental-process/internal/common/logger"
	"rental-process/internal/common/metrics"
)

// Result is the visible state of a view. Ticket zero means nothing applied yet.
type Result[T any] struct {
	Ticket uint64 `json:"ticket"`
	Value  T      `json:"value"`
	Err    error  `json:"-"`
}

// Sequencer applies a response only if it belongs to the most recently
// dispatched query. Older responses are dropped whenever they arrive.
type Sequencer[T any] struct {
	name    string
	counter atomic.Uint64
	logger  logger.Logger

	mu      sync.RWMutex
	current Result[T]

	wg sync.WaitGroup
}

func NewSequencer[T any](name string, log logger.Logger) *Sequencer[T] {
	return &Sequencer[T]{
		name:   name,
		logger: logger.ForComponent(log, "sequencer").WithFields(map[string]interface{}{"view": name}),
	}
}

// Dispatch takes the next ticket and runs fn in the background.
func (s *Sequencer[T]) Dispatch(ctx context.Context, fn func(context.Context) (T, error)) uint64 {
	ticket := s.counter.Add(1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		v, err := fn(ctx)
		s.apply(ticket, v, err)
	}()
	return ticket
}

// Run is Dispatch on the caller's goroutine. It reports whether the result was applied.
func (s *Sequencer[T]) Run(ctx context.Context, fn func(context.Context) (T, error)) (Result[T], bool) {
	ticket := s.counter.Add(1)
	v, err := fn(ctx)
	applied := s.apply(ticket, v, err)
	return Result[T]{Ticket: ticket, Value: v, Err: err}, applied
}

// Current returns the last applied result. A failed query keeps the previous
// value and records the error.
func (s *Sequencer[T]) Current() Result[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Latest is the ticket of the most recent dispatch.
func (s *Sequencer[T]) Latest() uint64 {
	return s.counter.Load()
}

// Wait blocks until every dispatched query has returned.
func (s *Sequencer[T]) Wait() {
	s.wg.Wait()
}

func (s *Sequencer[T]) apply(ticket uint64, v T, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ticket != s.counter.Load() {
		metrics.QueryResults.WithLabelValues(s.name, "stale").Inc()
		s.logger.Debug("stale response dropped", map[string]interface{}{
			"ticket": ticket,
			"latest": s.counter.Load(),
		})
		return false
	}

	if err != nil {
		metrics.QueryResults.WithLabelValues(s.name, "failed").Inc()
		s.logger.WithError(err).Warn("query failed", map[string]interface{}{"ticket": ticket})
		s.current.Ticket = ticket
		s.current.Err = err
		return true
	}

	metrics.QueryResults.WithLabelValues(s.name, "applied").Inc()
	s.current = Result[T]{Ticket: ticket, Value: v}
	return true
}
