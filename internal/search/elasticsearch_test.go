package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-process/internal/common/config"
	"rental-process/internal/common/logger"
	"rental-process/internal/models"
)

const (
	timeout = time.Second
	tick    = 5 * time.Millisecond
)

type capturedRequest struct {
	Path  string
	Query string
	Body  map[string]interface{}
}

// fakeES answers _search requests with a canned response and records each request.
type fakeES struct {
	mu       sync.Mutex
	requests []capturedRequest
	status   int
	response string
	delay    time.Duration
}

func (f *fakeES) handler(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]interface{}
	_ = json.Unmarshal(raw, &body)

	f.mu.Lock()
	f.requests = append(f.requests, capturedRequest{Path: r.URL.Path, Query: r.URL.RawQuery, Body: body})
	status, response, delay := f.status, f.response, f.delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(response))
}

func (f *fakeES) last() capturedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestService(t *testing.T, fake *fakeES) *Service {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(fake.handler))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	return NewService(client, config.SearchConfig{
		TenantIndex: "tenants",
		UnitIndex:   "units",
		PageSize:    20,
	}, logger.NewTestLogger(t), nil)
}

func TestService_SearchTenants(t *testing.T) {
	fake := &fakeES{response: `{
		"took": 3,
		"hits": {
			"total": {"value": 2},
			"hits": [
				{"_id": "t-1", "_source": {"name": "Ana Diaz", "email": "ana@example.com", "status": "active"}},
				{"_id": "t-2", "_source": {"id": "tenant-2", "name": "Andres Soto"}}
			]
		}
	}`}
	svc := newTestService(t, fake)

	tenants, err := svc.SearchTenants(context.Background(), models.TenantFilter{Text: "an", Page: 2, Size: 5})

	require.NoError(t, err)
	require.Len(t, tenants, 2)
	assert.Equal(t, "t-1", tenants[0].ID, "falls back to the document id")
	assert.Equal(t, "ana@example.com", tenants[0].Email)
	assert.Equal(t, "tenant-2", tenants[1].ID)

	req := fake.last()
	assert.Equal(t, "/tenants/_search", req.Path)
	assert.Contains(t, req.Query, "from=5")
	assert.Contains(t, req.Query, "size=5")
	assert.Contains(t, toJSON(t, req.Body), `"phrase_prefix"`)
}

func TestService_SearchAvailableUnits(t *testing.T) {
	fake := &fakeES{response: `{
		"hits": {
			"total": {"value": 1},
			"hits": [
				{"_id": "u-1", "_source": {"title": "Loft", "city": "Lima", "rent": 950.5, "bedrooms": 2, "furnished": true}}
			]
		}
	}`}
	svc := newTestService(t, fake)
	furnished := true

	units, err := svc.SearchAvailableUnits(context.Background(), models.UnitFilter{Furnished: &furnished})

	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, models.UnitSummary{ID: "u-1", Title: "Loft", City: "Lima", Rent: 950.5, Bedrooms: 2, Furnished: true}, units[0])

	req := fake.last()
	assert.Equal(t, "/units/_search", req.Path)
	assert.Contains(t, req.Query, "size=20")
	assert.Contains(t, toJSON(t, req.Body), `{"term":{"furnished":true}}`)
}

func TestService_ErrorStatus(t *testing.T) {
	fake := &fakeES{status: http.StatusBadRequest, response: `{"error": {"type": "parsing_exception"}, "status": 400}`}
	svc := newTestService(t, fake)

	_, err := svc.SearchTenants(context.Background(), models.TenantFilter{})

	assert.ErrorIs(t, err, ErrSearchQueryFailed)
}

func TestService_MalformedResponse(t *testing.T) {
	fake := &fakeES{response: `{"hits": "nope"}`}
	svc := newTestService(t, fake)

	_, err := svc.SearchAvailableUnits(context.Background(), models.UnitFilter{})

	assert.ErrorIs(t, err, ErrSearchQueryFailed)
	assert.True(t, strings.Contains(err.Error(), "decode"))
}

func TestService_Timeout(t *testing.T) {
	fake := &fakeES{delay: 200 * time.Millisecond, response: `{"hits": {"hits": []}}`}
	svc := newTestService(t, fake)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := svc.SearchTenants(ctx, models.TenantFilter{})

	assert.ErrorIs(t, err, ErrSearchTimeout)
}
