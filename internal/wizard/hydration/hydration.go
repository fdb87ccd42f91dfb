// Package hydration resumes a previously persisted process into a session.
package hydration

import (
	"context"
	"errors"
	"sync"

	"rental-process/internal/common/idcache"
	"rental-process/internal/common/logger"
	"rental-process/internal/common/metrics"
	"rental-process/internal/store/processstore"
	"rental-process/internal/wizard/state"
)

// Where the process id came from.
const (
	SourceRoute     = "route"
	SourceContainer = "container"
	SourceCache     = "cache"
	SourceNone      = "none"
)

const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
	OutcomeFresh    = "fresh"
)

// Result describes the one hydration a loader performs.
type Result struct {
	Source    string `json:"source"`
	Outcome   string `json:"outcome"`
	ProcessID string `json:"processId,omitempty"`
}

type Loader struct {
	store     processstore.Store
	container *state.Container
	cache     idcache.KV
	logger    logger.Logger

	mu       sync.Mutex
	hydrated bool
	result   Result
}

func New(store processstore.Store, container *state.Container, cache idcache.KV, log logger.Logger) *Loader {
	return &Loader{
		store:     store,
		container: container,
		cache:     cache,
		logger:    logger.ForComponent(log, "hydration"),
	}
}

// Hydrated reports whether Hydrate already ran.
func (l *Loader) Hydrated() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hydrated
}

// Hydrate runs once per loader. Later calls return the first result without
// fetching. Failures leave local state untouched and are never returned.
func (l *Loader) Hydrate(ctx context.Context, routeID string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.hydrated {
		return l.result
	}
	l.hydrated = true
	l.result = l.hydrate(ctx, routeID)
	metrics.Hydrations.WithLabelValues(l.result.Source, l.result.Outcome).Inc()
	return l.result
}

func (l *Loader) hydrate(ctx context.Context, routeID string) Result {
	l.restoreRefs(ctx)

	id, source := l.resolve(ctx, routeID)
	if id == "" {
		return Result{Source: SourceNone, Outcome: OutcomeFresh}
	}

	fields := map[string]interface{}{"processId": id, "source": source}
	proc, err := l.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, processstore.ErrProcessNotFound) {
			if source == SourceCache {
				l.cache.Remove(ctx, idcache.KeyProcessID)
			}
			l.logger.Info("process not found, starting fresh", fields)
			return Result{Source: source, Outcome: OutcomeNotFound, ProcessID: id}
		}
		l.logger.WithError(err).Warn("process fetch failed", fields)
		return Result{Source: source, Outcome: OutcomeError, ProcessID: id}
	}

	l.container.MergeRemote(proc)
	l.cache.Set(ctx, idcache.KeyProcessID, proc.ID)
	l.logger.Info("process hydrated", fields)
	return Result{Source: source, Outcome: OutcomeFound, ProcessID: proc.ID}
}

func (l *Loader) resolve(ctx context.Context, routeID string) (string, string) {
	if routeID != "" {
		return routeID, SourceRoute
	}
	if id := l.container.ID(); id != "" {
		return id, SourceContainer
	}
	if id, ok := l.cache.Get(ctx, idcache.KeyProcessID); ok {
		return id, SourceCache
	}
	return "", SourceNone
}

// restoreRefs fills tenant and unit selections cached by an earlier page load.
func (l *Loader) restoreRefs(ctx context.Context) {
	tenantID, _ := l.cache.Get(ctx, idcache.KeySelectedTenantID)
	unitID, _ := l.cache.Get(ctx, idcache.KeySelectedUnitID)
	if tenantID != "" || unitID != "" {
		l.container.AdoptRefs(tenantID, unitID)
	}
}
