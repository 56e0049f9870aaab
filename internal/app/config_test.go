package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata"))
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, "https://artifacts.example.org", cfg.Server.PublicURL)
	require.Equal(t, 20, cfg.Server.RateLimit.Requests)
	require.Equal(t, 30*time.Second, cfg.Server.RateLimit.Window)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 5433, cfg.Database.Postgres.Port)

	require.Equal(t, "database", cfg.Cache.Backend)

	require.Equal(t, int64(777001), cfg.GitHub.AppID)
	require.Equal(t, "/etc/durolink/app.pem", cfg.GitHub.PrivateKeyPath)
	require.Equal(t, "https://api.github.com", cfg.GitHub.APIBaseURL)
	require.Equal(t, "Iv1.deadbeef", cfg.GitHub.OAuth.ClientID)

	require.Equal(t, "0 4 * * *", cfg.Directory.SyncSchedule)
	require.False(t, cfg.Monitoring.Prometheus.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8030, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, 100, cfg.Server.RateLimit.Requests)
	require.Equal(t, time.Minute, cfg.Server.RateLimit.Window)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "memory", cfg.Cache.Backend)
	require.Equal(t, "https://api.github.com", cfg.GitHub.APIBaseURL)
	require.Equal(t, "@daily", cfg.Directory.SyncSchedule)
	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("DUROLINK_SERVER_PORT", "9100")
	t.Setenv("DUROLINK_GITHUB_APP_ID", "42")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, int64(42), cfg.GitHub.AppID)
}

func TestValidateRejectsIncompleteAppSettings(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.ErrorContains(t, cfg.Validate(), "app_id")

	cfg.GitHub.AppID = 42
	require.ErrorContains(t, cfg.Validate(), "private_key_path")

	cfg.GitHub.PrivateKeyPath = "/etc/durolink/app.pem"
	require.NoError(t, cfg.Validate())

	cfg.Cache.Backend = "redis"
	require.ErrorContains(t, cfg.Validate(), "cache backend")
}
