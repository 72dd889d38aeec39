package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "Social-Go", cfg.AppName)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "/ws/chat", cfg.Server.WebSocketPath)
	assert.Equal(t, "8081", cfg.APIServer.Port)
	assert.Equal(t, 24*time.Hour, cfg.Auth.JWTExpiry)
	assert.Equal(t, "social-user-activities", cfg.Kafka.ActivityTopic)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Reconcile.Interval)
	assert.Equal(t, 54, cfg.WebSocket.PingPeriodSeconds)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.APIServer.CORS.AllowedOrigins)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
DATABASE:
  TYPE: sqlite
  PATH: ./data/test.db
KAFKA:
  ENABLED: true
  BROKERS: ["k1:9092", "k2:9092"]
AUTH:
  ADMIN_EMAILS: ["root@x.io"]
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("RECONCILE_INTERVAL", "30s")
	t.Setenv("REDIS_ENABLED", "false")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "./data/test.db", cfg.Database.Path)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Reconcile.Interval)
	assert.False(t, cfg.Redis.Enabled)
	assert.True(t, cfg.Auth.IsAdminEmail(" ROOT@x.io "))
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestIsAdminEmail(t *testing.T) {
	a := AuthConfig{AdminEmails: []string{"Admin@Example.com"}}
	assert.True(t, a.IsAdminEmail("admin@example.com"))
	assert.False(t, a.IsAdminEmail(""))
	assert.False(t, a.IsAdminEmail("other@example.com"))
}
