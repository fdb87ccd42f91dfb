package synchronizer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-process/internal/common/idcache"
	"rental-process/internal/common/logger"
	"rental-process/internal/models"
	"rental-process/internal/store/processstore"
	"rental-process/internal/wizard/state"
)

type call struct {
	op    string
	id    string
	patch models.Patch
	step  models.Step
	body  models.Payload
}

// recordingStore wraps the memory store and records every write.
type recordingStore struct {
	*processstore.MemoryStore

	mu      sync.Mutex
	calls   []call
	failing error
	entered chan struct{}
	release chan struct{}
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: processstore.NewMemoryStore()}
}

func (r *recordingStore) Create(ctx context.Context, payload models.Payload, step models.Step, tenantID, unitID string) (string, error) {
	if r.release != nil {
		r.entered <- struct{}{}
		<-r.release
	}
	r.mu.Lock()
	failing := r.failing
	r.mu.Unlock()
	if failing != nil {
		r.record(call{op: "create", step: step, body: payload})
		return "", failing
	}
	id, err := r.MemoryStore.Create(ctx, payload, step, tenantID, unitID)
	r.record(call{op: "create", id: id, step: step, body: payload})
	return id, err
}

func (r *recordingStore) Update(ctx context.Context, id string, patch models.Patch, step models.Step, tenantID, unitID string) error {
	r.record(call{op: "update", id: id, patch: patch, step: step})
	r.mu.Lock()
	failing := r.failing
	r.mu.Unlock()
	if failing != nil {
		return failing
	}
	return r.MemoryStore.Update(ctx, id, patch, step, tenantID, unitID)
}

func (r *recordingStore) record(c call) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
}

func (r *recordingStore) Calls() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

func (r *recordingStore) fail(err error) {
	r.mu.Lock()
	r.failing = err
	r.mu.Unlock()
}

type fixture struct {
	sync      *Synchronizer
	store     *recordingStore
	container *state.Container
	cache     *idcache.MemoryKV
	clock     *clockwork.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     newRecordingStore(),
		container: state.New(),
		cache:     idcache.NewMemoryKV(),
		clock:     clockwork.NewFakeClock(),
	}
	f.sync = New(f.store, f.container, f.cache, Options{
		Window: DefaultWindow,
		Clock:  f.clock,
		Logger: logger.NewTestLogger(t),
	})
	t.Cleanup(f.sync.Close)
	return f
}

func (f *fixture) edit(p models.Patch, step models.Step) {
	f.container.Patch(p)
	f.sync.Schedule(p, step, false)
}

func waitCalls(t *testing.T, s *recordingStore, n int) []call {
	t.Helper()
	require.Eventually(t, func() bool { return len(s.Calls()) >= n }, time.Second, 5*time.Millisecond)
	return s.Calls()
}

func TestSchedule_RapidEditsIssueOneWrite(t *testing.T) {
	f := newFixture(t)

	for _, name := range []string{"A", "An", "Ana"} {
		f.edit(models.Patch{ApplicantInfo: map[string]string{"name": name}}, models.StepBasicInfo)
		f.clock.Advance(DefaultWindow / 2)
	}
	assert.Empty(t, f.store.Calls(), "no write inside the window")

	f.clock.Advance(DefaultWindow)
	calls := waitCalls(t, f.store, 1)

	require.Len(t, calls, 1)
	assert.Equal(t, "create", calls[0].op)
	assert.Equal(t, "Ana", calls[0].body.ApplicantInfo["name"])
	assert.Equal(t, models.StepBasicInfo, calls[0].step)
	assert.False(t, f.sync.Pending())
}

func TestSchedule_MergesFragmentsInWindow(t *testing.T) {
	f := newFixture(t)
	id, err := f.store.MemoryStore.Create(context.Background(), models.Payload{}, models.StepBasicInfo, "", "")
	require.NoError(t, err)
	f.container.SetID(id)

	f.edit(models.Patch{ApplicantInfo: map[string]string{"name": "Ana"}}, models.StepBasicInfo)
	f.edit(models.Patch{ApplicantInfo: map[string]string{"lastName": "Diaz"}}, 0)
	f.edit(models.Patch{ApplicantInfo: map[string]string{"name": "Anna"}}, 0)

	f.clock.Advance(DefaultWindow)
	calls := waitCalls(t, f.store, 1)

	require.Len(t, calls, 1)
	assert.Equal(t, "update", calls[0].op)
	assert.Equal(t, id, calls[0].id)
	assert.Equal(t, map[string]string{"name": "Anna", "lastName": "Diaz"}, calls[0].patch.ApplicantInfo)
	assert.Equal(t, models.StepBasicInfo, calls[0].step)
}

func TestSchedule_CreateThenUpdateWithReturnedID(t *testing.T) {
	f := newFixture(t)

	f.edit(models.Patch{ApplicantInfo: map[string]string{"name": "Ana"}}, models.StepBasicInfo)
	f.clock.Advance(DefaultWindow)
	waitCalls(t, f.store, 1)

	id := f.container.ID()
	require.NotEmpty(t, id)
	cached, ok := f.cache.Get(context.Background(), idcache.KeyProcessID)
	require.True(t, ok)
	assert.Equal(t, id, cached)

	f.edit(models.Patch{ApplicantInfo: map[string]string{"lastName": "Diaz"}}, models.StepBasicInfo)
	f.clock.Advance(DefaultWindow)
	calls := waitCalls(t, f.store, 2)

	require.Len(t, calls, 2)
	assert.Equal(t, "create", calls[0].op)
	assert.Equal(t, "update", calls[1].op)
	assert.Equal(t, id, calls[1].id)

	stored, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Ana", stored.Payload.ApplicantInfo["name"])
	assert.Equal(t, "Diaz", stored.Payload.ApplicantInfo["lastName"])
}

func TestSchedule_ImmediateWritesSynchronously(t *testing.T) {
	f := newFixture(t)

	f.edit(models.Patch{ApplicantInfo: map[string]string{"name": "Ana"}}, models.StepBasicInfo)
	f.sync.Schedule(models.Patch{}, models.StepDocuments, true)

	calls := f.store.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, models.StepDocuments, calls[0].step)
	assert.Equal(t, "Ana", calls[0].body.ApplicantInfo["name"])

	// the cancelled timer must not produce a second write
	f.clock.Advance(2 * DefaultWindow)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, f.store.Calls(), 1)
}

func TestSchedule_WriteDuringCreateBecomesUpdate(t *testing.T) {
	f := newFixture(t)
	f.store.entered = make(chan struct{}, 1)
	f.store.release = make(chan struct{})

	f.edit(models.Patch{ApplicantInfo: map[string]string{"name": "Ana"}}, models.StepBasicInfo)
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, f.sync.Flush(context.Background()))
	}()
	<-f.store.entered

	// second write queues behind the blocked create
	second := make(chan struct{})
	go func() {
		defer close(second)
		f.sync.Schedule(models.Patch{ApplicantInfo: map[string]string{"lastName": "Diaz"}}, 0, true)
	}()

	time.Sleep(20 * time.Millisecond)
	close(f.store.release)
	<-done
	<-second

	calls := f.store.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "create", calls[0].op)
	assert.Equal(t, "update", calls[1].op)
	assert.Equal(t, f.container.ID(), calls[1].id)
}

func TestFlush_FailureKeepsFragmentForNextWrite(t *testing.T) {
	f := newFixture(t)
	f.store.fail(errors.New("store unavailable"))

	f.edit(models.Patch{ApplicantInfo: map[string]string{"name": "Ana"}}, models.StepBasicInfo)
	err := f.sync.Flush(context.Background())

	assert.Error(t, err)
	assert.True(t, f.sync.Pending())
	assert.Empty(t, f.container.ID())
	assert.Equal(t, "Ana", f.container.Payload().ApplicantInfo["name"], "local state is not rolled back")

	// no timer retry
	f.clock.Advance(5 * DefaultWindow)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, f.store.Calls(), 1)

	f.store.fail(nil)
	f.edit(models.Patch{ApplicantInfo: map[string]string{"lastName": "Diaz"}}, 0)
	require.NoError(t, f.sync.Flush(context.Background()))

	calls := f.store.Calls()
	require.Len(t, calls, 2)
	last := calls[1]
	assert.Equal(t, "create", last.op)
	assert.Equal(t, "Ana", last.body.ApplicantInfo["name"])
	assert.Equal(t, "Diaz", last.body.ApplicantInfo["lastName"])
	assert.Equal(t, models.StepBasicInfo, last.step)
}

func TestFlush_NothingPending(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.sync.Flush(context.Background()))
	assert.Empty(t, f.store.Calls())
}

func TestUpdate_NotFoundDropsStaleID(t *testing.T) {
	f := newFixture(t)
	f.container.SetID("gone")
	f.cache.Set(context.Background(), idcache.KeyProcessID, "gone")

	f.edit(models.Patch{ApplicantInfo: map[string]string{"name": "Ana"}}, models.StepBasicInfo)
	err := f.sync.Flush(context.Background())

	assert.ErrorIs(t, err, processstore.ErrProcessNotFound)
	assert.Empty(t, f.container.ID())
	_, ok := f.cache.Get(context.Background(), idcache.KeyProcessID)
	assert.False(t, ok)

	require.NoError(t, f.sync.Flush(context.Background()))
	calls := f.store.Calls()
	assert.Equal(t, "create", calls[len(calls)-1].op)
}

func TestClose_IgnoresLaterSchedules(t *testing.T) {
	f := newFixture(t)

	f.edit(models.Patch{ApplicantInfo: map[string]string{"name": "Ana"}}, models.StepBasicInfo)
	f.sync.Close()
	f.sync.Schedule(models.Patch{ApplicantInfo: map[string]string{"name": "Eva"}}, 0, true)

	f.clock.Advance(2 * DefaultWindow)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, f.store.Calls())
}

func TestClose_DropsCallbackWaitingBehindWrite(t *testing.T) {
	f := newFixture(t)
	f.store.entered = make(chan struct{}, 1)
	f.store.release = make(chan struct{})

	f.edit(models.Patch{ApplicantInfo: map[string]string{"name": "Ana"}}, models.StepBasicInfo)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.sync.Flush(context.Background())
	}()
	<-f.store.entered

	// the timer fires and its callback queues behind the blocked create
	f.edit(models.Patch{ApplicantInfo: map[string]string{"lastName": "Diaz"}}, 0)
	f.clock.Advance(DefaultWindow)
	time.Sleep(20 * time.Millisecond)

	f.sync.Close()
	close(f.store.release)
	<-done
	time.Sleep(20 * time.Millisecond)

	calls := f.store.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "create", calls[0].op)
	assert.False(t, f.sync.Pending())
}

func TestHold_ParksWritesUntilRelease(t *testing.T) {
	f := newFixture(t)

	f.sync.Hold()
	f.edit(models.Patch{ApplicantInfo: map[string]string{"name": "Ana"}}, models.StepBasicInfo)
	f.sync.Schedule(models.Patch{ApplicantInfo: map[string]string{"lastName": "Diaz"}}, 0, true)
	assert.Empty(t, f.store.Calls())
	assert.True(t, f.sync.Pending())

	// an id adopted while held is what the parked write targets
	id, err := f.store.MemoryStore.Create(context.Background(), models.Payload{}, models.StepDocuments, "", "")
	require.NoError(t, err)
	f.container.SetID(id)

	require.NoError(t, f.sync.Release())
	calls := f.store.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "update", calls[0].op)
	assert.Equal(t, id, calls[0].id)
	assert.Equal(t, map[string]string{"name": "Ana", "lastName": "Diaz"}, calls[0].patch.ApplicantInfo)
	assert.False(t, f.sync.Pending())
}

func TestHold_WaitsForWriteInFlight(t *testing.T) {
	f := newFixture(t)
	f.store.entered = make(chan struct{}, 1)
	f.store.release = make(chan struct{})

	f.edit(models.Patch{ApplicantInfo: map[string]string{"name": "Ana"}}, models.StepBasicInfo)
	go func() { _ = f.sync.Flush(context.Background()) }()
	<-f.store.entered

	held := make(chan struct{})
	go func() {
		f.sync.Hold()
		close(held)
	}()

	select {
	case <-held:
		t.Fatal("hold returned while a create was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(f.store.release)
	<-held
	assert.NotEmpty(t, f.container.ID())
	require.NoError(t, f.sync.Release())
	assert.Len(t, f.store.Calls(), 1)
}
