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
app:
  name: estimator-test
models:
  registry_path: testdata/registry.json
workers:
  estimate-delivery-time:
    enabled: true
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "estimator-test", cfg.App.Name)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "file", cfg.Models.RegistrySource)
	assert.Equal(t, 15000, cfg.Models.FetchTimeout)
	assert.Equal(t, 2, cfg.Models.FetchRetries)
	assert.Equal(t, "delivery-time", cfg.Models.DeliveryTimeModel)
	assert.Equal(t, "courier-demand", cfg.Models.CourierDemandModel)
	assert.Equal(t, "model-artifact:", cfg.Models.Cache.KeyPrefix)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	w := cfg.Workers["estimate-delivery-time"]
	assert.Equal(t, 5, w.MaxJobsActive)
	assert.Equal(t, 30000, w.Timeout)
	assert.Equal(t, 3, w.MaxRetries)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_REGISTRY_PATH", "/srv/models/registry.json")
	path := writeConfig(t, `
models:
  registry_path: ${TEST_REGISTRY_PATH}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/models/registry.json", cfg.Models.RegistryPath)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name: "unknown registry source",
			body: `
models:
  registry_source: consul
`,
			wantErr: "registry_source",
		},
		{
			name: "postgres registry without host",
			body: `
models:
  registry_source: postgres
`,
			wantErr: "database.postgres.host",
		},
		{
			name: "camunda enabled without broker",
			body: `
camunda:
  enabled: true
`,
			wantErr: "camunda.broker_address",
		},
		{
			name: "cache enabled without redis",
			body: `
models:
  cache:
    enabled: true
`,
			wantErr: "database.redis.address",
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

func TestGetWorkerConfig(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"estimate-courier-demand": {Enabled: false, MaxJobsActive: 2},
	}}

	assert.False(t, IsWorkerEnabled(cfg, "estimate-courier-demand"))
	assert.True(t, IsWorkerEnabled(cfg, "estimate-delivery-time"))
	assert.Equal(t, 2, GetWorkerConfig(cfg, "estimate-courier-demand").MaxJobsActive)
	assert.Equal(t, 5, GetWorkerConfig(cfg, "missing").MaxJobsActive)
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}
