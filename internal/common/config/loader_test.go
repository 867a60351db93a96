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

const minimalConfig = `
database:
  postgres:
    host: localhost
    database: forms
    user: forms
`

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "formflow", cfg.App.Name)
	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Equal(t, int64(12<<20), cfg.HTTP.MaxUploadBytes)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "form-submissions", cfg.Storage.Folder)
	assert.Equal(t, "form-submissions", cfg.Database.Elasticsearch.Index)
	assert.Equal(t, 4, cfg.Submission.UploadConcurrency)
	assert.False(t, cfg.Submission.CompensateOrphans)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("FORMFLOW_TEST_SECRET", "s3cr3t")

	cfg, err := LoadFromFile(writeConfig(t, minimalConfig+`
auth:
  jwt_secret: ${FORMFLOW_TEST_SECRET}
`))
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", cfg.Auth.JWTSecret)
}

func TestLoadFromFile_WorkerDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig+`
workers:
  submit-form:
    enabled: true
    timeout: 5000
`))
	require.NoError(t, err)

	w := GetWorkerConfig(cfg, "submit-form")
	assert.True(t, w.Enabled)
	assert.Equal(t, 5000, w.Timeout)
	assert.Equal(t, 5, w.MaxJobsActive)
	assert.Equal(t, 3, w.MaxRetries)

	fallback := GetWorkerConfig(cfg, "list-submissions")
	assert.Equal(t, 30000, fallback.Timeout)
	assert.True(t, IsWorkerEnabled(cfg, "list-submissions"))
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing postgres host",
			body:    "database:\n  postgres:\n    database: forms\n    user: forms\n",
			wantErr: "database.postgres.host is required",
		},
		{
			name:    "unknown storage backend",
			body:    minimalConfig + "storage:\n  backend: floppy\n",
			wantErr: "storage.backend",
		},
		{
			name:    "s3 without bucket",
			body:    minimalConfig + "storage:\n  backend: s3\n",
			wantErr: "storage.s3.bucket is required",
		},
		{
			name:    "sns without topic",
			body:    minimalConfig + "notifications:\n  sns:\n    enabled: true\n",
			wantErr: "topic_arn",
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

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}
