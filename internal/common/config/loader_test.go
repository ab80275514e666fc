// internal/common/config/loader_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
app:
  name: vdte-server
database:
  postgres:
    host: db.internal
    port: 5432
    database: vdte
    user: render
  redis:
    address: cache.internal:6379
storage:
  root: /tmp/vdte-blobs
render:
  workers: 8
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "vdte-server", cfg.App.Name)
	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	assert.Equal(t, 8, cfg.Render.Workers)

	// Defaults fill the rest.
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 25, cfg.Database.Postgres.MaxConnections)
	assert.Equal(t, int64(8<<20), cfg.Storage.MaxImageBytes)
	assert.Equal(t, 256, cfg.Render.QueueDepth)
	assert.Equal(t, 3, cfg.Render.StoreRetries)
	assert.Equal(t, 3600000, cfg.Render.BatchRetention)
	assert.Equal(t, 100, cfg.GC.BatchSize)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile_MissingRequired(t *testing.T) {
	path := writeConfig(t, `
database:
  postgres:
    host: db.internal
    database: vdte
    user: render
  redis:
    address: cache.internal:6379
`)

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.root")
}

func TestGetDSN(t *testing.T) {
	cfg := PostgresConfig{
		Host: "db", Port: 5432, User: "u", Password: "p",
		Database: "vdte", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=db port=5432 user=u password=p dbname=vdte sslmode=disable",
		cfg.GetDSN())
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 250*time.Millisecond, GetDuration(250))
}
