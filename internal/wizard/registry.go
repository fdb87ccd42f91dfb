// Package wizard drives one rental application per browser session.
package wizard

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"rental-process/internal/common/camunda"
	apperrors "rental-process/internal/common/errors"
	"rental-process/internal/common/idcache"
	"rental-process/internal/common/logger"
	"rental-process/internal/common/metrics"
	"rental-process/internal/common/observability"
	"rental-process/internal/notify"
	"rental-process/internal/search"
	"rental-process/internal/store/processstore"
)

// Deps are the collaborators shared by every session.
type Deps struct {
	Store         processstore.Store
	Cache         idcache.Factory
	Notifier      notify.Notifier
	Review        camunda.ReviewStarter
	Tenants       search.TenantSearcher
	Units         search.UnitSearcher
	Clock         clockwork.Clock
	Logger        logger.Logger
	Observability *observability.Observability
}

type Options struct {
	Debounce       time.Duration
	WriteTimeout   time.Duration
	FetchTimeout   time.Duration
	SearchDebounce time.Duration
	SearchTimeout  time.Duration
	AllowAutofill  bool
}

// Registry holds the live sessions.
type Registry struct {
	deps Deps
	opts Options

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(deps Deps, opts Options) *Registry {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOpLogger()
	}
	if deps.Cache == nil {
		deps.Cache = idcache.MemoryFactory()
	}
	if deps.Review == nil {
		deps.Review = camunda.NoopReviewStarter{Logger: deps.Logger}
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 5 * time.Second
	}
	return &Registry{
		deps:     deps,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Open returns the session for id, creating it on first use.
func (r *Registry) Open(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		return s
	}
	s := newSession(id, r.deps, r.opts)
	r.sessions[id] = s
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	return s
}

// Get returns an existing session.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, apperrors.NewSessionNotFoundError(id)
	}
	return s, nil
}

// Close tears a session down. Pending debounced writes are dropped.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	r.mu.Unlock()

	if !ok {
		return apperrors.NewSessionNotFoundError(id)
	}
	s.Close()
	return nil
}

func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	metrics.ActiveSessions.Set(0)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) AutofillAllowed() bool { return r.opts.AllowAutofill }

// FlushAll writes every session's pending edits. Used on shutdown.
func (r *Registry) FlushAll(ctx context.Context) {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		_ = s.sync.Flush(ctx)
	}
}
