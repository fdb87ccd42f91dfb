package hydration

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-process/internal/catalog"
	"rental-process/internal/common/idcache"
	"rental-process/internal/common/logger"
	"rental-process/internal/models"
	"rental-process/internal/store/processstore"
	"rental-process/internal/wizard/state"
)

type countingStore struct {
	processstore.Store
	gets atomic.Int32
	err  error
}

func (c *countingStore) Get(ctx context.Context, id string) (*models.Process, error) {
	c.gets.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.Store.Get(ctx, id)
}

func seed(t *testing.T, store processstore.Store) string {
	t.Helper()
	id, err := store.Create(context.Background(), models.Payload{
		ApplicantInfo:   map[string]string{"name": "Server", "lastName": "Diaz"},
		SelectedProfile: catalog.ProfileRetired,
		AcceptedDeposit: true,
	}, models.StepDocuments, "t-9", "u-9")
	require.NoError(t, err)
	return id
}

func newLoader(t *testing.T, store processstore.Store) (*Loader, *state.Container, *idcache.MemoryKV) {
	c := state.New()
	kv := idcache.NewMemoryKV()
	return New(store, c, kv, logger.NewTestLogger(t)), c, kv
}

func TestHydrate_FromRoute(t *testing.T) {
	store := processstore.NewMemoryStore()
	id := seed(t, store)
	l, c, kv := newLoader(t, store)

	res := l.Hydrate(context.Background(), id)

	assert.Equal(t, Result{Source: SourceRoute, Outcome: OutcomeFound, ProcessID: id}, res)
	snap := c.Snapshot()
	assert.Equal(t, id, snap.ID)
	assert.Equal(t, models.StepDocuments, snap.Step)
	assert.Equal(t, catalog.ProfileRetired, snap.Payload.SelectedProfile)
	assert.Equal(t, "t-9", snap.TenantID)
	cached, ok := kv.Get(context.Background(), idcache.KeyProcessID)
	assert.True(t, ok)
	assert.Equal(t, id, cached)
}

func TestHydrate_LocalEditSurvives(t *testing.T) {
	store := processstore.NewMemoryStore()
	id := seed(t, store)
	l, c, _ := newLoader(t, store)

	c.Patch(models.Patch{ApplicantInfo: map[string]string{"name": "Ana"}})
	l.Hydrate(context.Background(), id)

	info := c.Payload().ApplicantInfo
	assert.Equal(t, "Ana", info["name"])
	assert.Equal(t, "Diaz", info["lastName"])
}

func TestHydrate_ResolutionOrder(t *testing.T) {
	store := processstore.NewMemoryStore()
	routeID := seed(t, store)
	containerID := seed(t, store)
	cacheID := seed(t, store)

	t.Run("container before cache", func(t *testing.T) {
		l, c, kv := newLoader(t, store)
		c.SetID(containerID)
		kv.Set(context.Background(), idcache.KeyProcessID, cacheID)

		res := l.Hydrate(context.Background(), "")
		assert.Equal(t, SourceContainer, res.Source)
		assert.Equal(t, containerID, res.ProcessID)
	})

	t.Run("route before container", func(t *testing.T) {
		l, c, _ := newLoader(t, store)
		c.SetID(containerID)

		res := l.Hydrate(context.Background(), routeID)
		assert.Equal(t, SourceRoute, res.Source)
		assert.Equal(t, routeID, c.ID())
	})

	t.Run("cache last", func(t *testing.T) {
		l, _, kv := newLoader(t, store)
		kv.Set(context.Background(), idcache.KeyProcessID, cacheID)

		res := l.Hydrate(context.Background(), "")
		assert.Equal(t, SourceCache, res.Source)
		assert.Equal(t, OutcomeFound, res.Outcome)
	})
}

func TestHydrate_RunsOnce(t *testing.T) {
	store := &countingStore{Store: processstore.NewMemoryStore()}
	id := seed(t, store)
	l, c, _ := newLoader(t, store)

	first := l.Hydrate(context.Background(), id)
	c.Patch(models.Patch{ApplicantInfo: map[string]string{"lastName": "Edited"}})
	second := l.Hydrate(context.Background(), id)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), store.gets.Load())
	assert.True(t, l.Hydrated())
	assert.Equal(t, "Edited", c.Payload().ApplicantInfo["lastName"])
}

func TestHydrate_StaleCacheEntryRemoved(t *testing.T) {
	l, c, kv := newLoader(t, processstore.NewMemoryStore())
	kv.Set(context.Background(), idcache.KeyProcessID, "deleted-elsewhere")

	res := l.Hydrate(context.Background(), "")

	assert.Equal(t, OutcomeNotFound, res.Outcome)
	assert.Empty(t, c.ID())
	_, ok := kv.Get(context.Background(), idcache.KeyProcessID)
	assert.False(t, ok)
}

func TestHydrate_FetchErrorKeepsDefaults(t *testing.T) {
	store := &countingStore{Store: processstore.NewMemoryStore(), err: errors.New("timeout")}
	l, c, kv := newLoader(t, store)
	kv.Set(context.Background(), idcache.KeyProcessID, "p-1")

	res := l.Hydrate(context.Background(), "")

	assert.Equal(t, OutcomeError, res.Outcome)
	assert.Equal(t, state.New().Snapshot(), c.Snapshot())
	_, ok := kv.Get(context.Background(), idcache.KeyProcessID)
	assert.True(t, ok, "transient failures keep the cached id")
}

func TestHydrate_Fresh(t *testing.T) {
	l, _, _ := newLoader(t, processstore.NewMemoryStore())

	res := l.Hydrate(context.Background(), "")

	assert.Equal(t, Result{Source: SourceNone, Outcome: OutcomeFresh}, res)
}

func TestHydrate_RestoresCachedRefs(t *testing.T) {
	l, c, kv := newLoader(t, processstore.NewMemoryStore())
	kv.Set(context.Background(), idcache.KeySelectedTenantID, "t-1")
	kv.Set(context.Background(), idcache.KeySelectedUnitID, "u-1")

	l.Hydrate(context.Background(), "")

	tenantID, unitID := c.Refs()
	assert.Equal(t, "t-1", tenantID)
	assert.Equal(t, "u-1", unitID)
}
