package config

import (
	"io/fs"
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

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "log_level: debug\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 3001, cfg.Server.Port)
	assert.Equal(t, 25, cfg.Catalog.Limit)
	assert.Equal(t, "https://itunes.apple.com/search", cfg.Catalog.BaseURL)
	assert.Equal(t, 500*time.Millisecond, cfg.Client.Debounce)
	assert.Equal(t, 2, cfg.Client.MinLength)
	assert.Equal(t, 5*time.Minute, cfg.Client.CacheTTL)
	assert.Equal(t, "http://localhost:3001", cfg.Server.PublicBaseURL)
	assert.Equal(t, "http://localhost:3001", cfg.Client.BackendURL)
	assert.False(t, cfg.RabbitMQ.Enabled)
	assert.True(t, cfg.ShouldMigrate())
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("PODSEARCH_TEST_DB_PASSWORD", "s3cret")
	t.Setenv("PODSEARCH_TEST_ORIGIN", "https://podsearch.example.com")

	path := writeConfig(t, `
environment: production
database:
  host: db
  port: 5433
  user: app
  password: ${PODSEARCH_TEST_DB_PASSWORD}
  dbname: podsearch
server:
  port: 8080
  allowed_origins:
    - ${PODSEARCH_TEST_ORIGIN}
catalog:
  timeout: 3s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, []string{"https://podsearch.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, ":8080", cfg.Server.Addr())
	assert.Equal(t, 3*time.Second, cfg.Catalog.Timeout)
	assert.Equal(t, "host=db port=5433 user=app password=s3cret dbname=podsearch sslmode=disable", cfg.Database.DSN())
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.ShouldMigrate())
}

func TestLoad_ExplicitAutoMigrateWins(t *testing.T) {
	path := writeConfig(t, "environment: production\ndatabase:\n  auto_migrate: true\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.ShouldMigrate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "http://localhost:3001", cfg.Server.PublicBaseURL)
	assert.Equal(t, "http://localhost:3001", cfg.Client.BackendURL)
	assert.Equal(t, 500*time.Millisecond, cfg.Client.Debounce)
	assert.Equal(t, 2, cfg.Client.MinLength)
	assert.Equal(t, 5*time.Minute, cfg.Client.CacheTTL)
	assert.Equal(t, 20*time.Second, cfg.Client.SearchTimeout)
	assert.Equal(t, 10*time.Second, cfg.Client.RecentTimeout)
	assert.Equal(t, 5*time.Second, cfg.Client.HealthTimeout)
}

func TestLoad_BackendFollowsPublicBaseURL(t *testing.T) {
	path := writeConfig(t, "server:\n  public_base_url: https://api.podsearch.example\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.podsearch.example", cfg.Client.BackendURL)
}
