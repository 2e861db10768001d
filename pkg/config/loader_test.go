package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithPath_DefaultsAndLegacyEnv(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("WEBHOOK_TEMPLATE", "https://relay.example.com/webhook?token=")

	cfg, _, err := LoadWithPath("test", filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.AppEnv)
	assert.Equal(t, "123:abc", cfg.Bot.Token)
	assert.Equal(t, "https://relay.example.com/webhook?token=", cfg.Webhook.URLTemplate)
	assert.Equal(t, "polling", cfg.Bot.Mode)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 3*time.Second, cfg.Storage.Timeout)
	assert.Equal(t, 5, cfg.RateLimit.PerUser.Limit)
	assert.Equal(t, "1m", cfg.RateLimit.PerUser.Window)
	assert.False(t, cfg.Redis.Enabled())
}

func TestLoadWithPath_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	content := []byte(`
bot:
  token: from-file
  send_timeout: 5s
webhook:
  url_template: "https://file.example.com/hook/"
storage:
  driver: redis
redis:
  addr: "localhost:6379"
rate_limit:
  per_user:
    limit: 2
    window: 30s
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("RATE_LIMIT_PER_USER_LIMIT", "7")

	cfg, v, err := LoadWithPath("test", path)
	require.NoError(t, err)
	require.NotNil(t, v)

	assert.Equal(t, "from-file", cfg.Bot.Token)
	assert.Equal(t, 5*time.Second, cfg.Bot.SendTimeout)
	assert.Equal(t, "redis", cfg.Storage.Driver)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 7, cfg.RateLimit.PerUser.Limit)
	assert.Equal(t, "30s", cfg.RateLimit.PerUser.Window)
}

func TestLoadWithPath_ValidationFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bot:\n  token: x\nwebhook:\n  url_template: y\nstorage:\n  driver: dynamo\n"), 0o600))

	_, _, err := LoadWithPath("test", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate config")
}

func TestLoadWithPath_WebhookModeRequiresPublicURL(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("WEBHOOK_TEMPLATE", "https://relay.example.com/webhook?token=")
	t.Setenv("BOT_MODE", "webhook")

	_, _, err := LoadWithPath("test", "")
	require.Error(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	dsn := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", Name: "pydt", SSLMode: "disable"}.DSN()
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=pydt sslmode=disable", dsn)
}
