// test/e2e/e2e_test.go
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-process/internal/api"
	"rental-process/internal/common/config"
	"rental-process/internal/common/database"
	"rental-process/internal/common/idcache"
	"rental-process/internal/common/logger"
	"rental-process/internal/store/processstore"
	"rental-process/internal/wizard"
)

// Runs against the services from docker compose. Set E2E=1 to enable.
func requireServices(t *testing.T) *config.Config {
	t.Helper()
	if testing.Short() || os.Getenv("E2E") == "" {
		t.Skip("Skipping E2E tests, set E2E=1 with postgres and redis running")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	// force localhost for E2E runs
	cfg.Database.Postgres.Host = "localhost"
	cfg.Database.Redis.Address = "localhost:6379"
	return cfg
}

type env struct {
	server *httptest.Server
	store  processstore.Store
}

func setup(t *testing.T) *env {
	cfg := requireServices(t)
	ctx := context.Background()
	log := logger.NewTestLogger(t)

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err, "PostgreSQL connection failed")
	require.NoError(t, pg.Ping(ctx), "PostgreSQL ping failed")
	t.Cleanup(func() { pg.Close() })
	require.NoError(t, database.MigrateUp(ctx, pg.DB, log))

	redis := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, redis.Ping(ctx), "Redis ping failed")
	t.Cleanup(func() { redis.Close() })

	store := processstore.NewPostgresStore(pg.DB, log)
	registry := wizard.NewRegistry(wizard.Deps{
		Store:  store,
		Cache:  idcache.RedisFactory(redis.Client, "e2e-"+time.Now().Format("150405.000"), log),
		Logger: log,
	}, wizard.Options{
		Debounce:      100 * time.Millisecond,
		WriteTimeout:  5 * time.Second,
		AllowAutofill: true,
	})
	t.Cleanup(registry.CloseAll)

	srv := httptest.NewServer(api.New(registry, log, nil).Routes())
	t.Cleanup(srv.Close)
	return &env{server: srv, store: store}
}

func (e *env) call(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	out := map[string]interface{}{}
	if res.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	}
	return res.StatusCode, out
}

func TestWizardJourney(t *testing.T) {
	e := setup(t)
	session := "journey-" + time.Now().Format("150405.000")

	code, _ := e.call(t, http.MethodPost, "/wizard/"+session+"/autofill", map[string]string{
		"profile":  "independent",
		"security": "insurance",
	})
	require.Equal(t, http.StatusOK, code)

	var processID string
	for step := 2; step <= 4; step++ {
		code, body := e.call(t, http.MethodPost, "/wizard/"+session+"/continue", nil)
		require.Equal(t, http.StatusOK, code, body)
		view := body["view"].(map[string]interface{})
		assert.EqualValues(t, step, view["currentStep"])
		processID, _ = view["processId"].(string)
	}
	require.NotEmpty(t, processID)

	code, body := e.call(t, http.MethodPost, "/wizard/"+session+"/continue", nil)
	require.Equal(t, http.StatusOK, code, body)

	p, err := e.store.Get(context.Background(), processID)
	require.NoError(t, err)
	assert.Equal(t, "submitted", string(p.Status))
	assert.Equal(t, "insurance", string(p.Payload.SelectedSecurity))
}

func TestResumeInNewSession(t *testing.T) {
	e := setup(t)
	first := "resume-a-" + time.Now().Format("150405.000")
	second := "resume-b-" + time.Now().Format("150405.000")

	code, body := e.call(t, http.MethodPatch, "/wizard/"+first, map[string]interface{}{
		"patch":     map[string]interface{}{"selectedProfile": "student", "applicantInfo": map[string]string{"name": "Ana"}},
		"immediate": true,
	})
	require.Equal(t, http.StatusOK, code, body)
	processID := body["processId"].(string)
	require.NotEmpty(t, processID)

	code, body = e.call(t, http.MethodPost, "/wizard/"+second+"/hydrate?processId="+processID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "found", body["outcome"])
	view := body["view"].(map[string]interface{})
	assert.Equal(t, "student", view["payload"].(map[string]interface{})["selectedProfile"])
}
