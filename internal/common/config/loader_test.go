package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
wizard:
  store: memory
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "rental-process", cfg.App.Name)
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, 750, cfg.Wizard.DebounceMs)
	assert.Equal(t, "wizard", cfg.Wizard.CacheNamespace)
	assert.Equal(t, "tenants", cfg.Search.TenantIndex)
	assert.Equal(t, "units", cfg.Search.UnitIndex)
	assert.Equal(t, 20, cfg.Search.PageSize)
	assert.Equal(t, "rental-application-review", cfg.Camunda.ReviewProcessID)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "rental-process", cfg.Observability.ServiceName)
}

func TestLoadFromFile_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_PG_HOST", "db.internal")
	path := writeConfig(t, `
database:
  postgres:
    host: ${TEST_PG_HOST}
    database: rentals
    user: wizard
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	assert.Equal(t, "postgres", cfg.Wizard.Store)
	assert.Contains(t, cfg.Database.Postgres.GetDSN(), "host=db.internal")
	assert.Contains(t, cfg.Database.Postgres.GetDSN(), "sslmode=disable")
}

func TestLoadFromFile_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "postgres without host",
			body:    "wizard:\n  store: postgres\n",
			wantErr: "database.postgres.host is required",
		},
		{
			name:    "unknown store",
			body:    "wizard:\n  store: sqlite\n",
			wantErr: "wizard.store must be",
		},
		{
			name:    "email without sender",
			body:    "wizard:\n  store: memory\nnotifications:\n  email:\n    enabled: true\n",
			wantErr: "from_email is required",
		},
		{
			name:    "camunda without broker",
			body:    "wizard:\n  store: memory\ncamunda:\n  enabled: true\n",
			wantErr: "camunda.broker_address is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestElasticsearchConfig_GetAddresses(t *testing.T) {
	assert.Equal(t, []string{"http://a:9200"}, ElasticsearchConfig{Addresses: []string{"http://a:9200"}}.GetAddresses())
	assert.Equal(t, []string{"http://b:9200"}, ElasticsearchConfig{URL: "http://b:9200"}.GetAddresses())
	assert.Nil(t, ElasticsearchConfig{}.GetAddresses())
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 750*time.Millisecond, GetDuration(750))
}
