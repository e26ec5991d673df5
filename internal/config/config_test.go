package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
database:
  driver: memory
kafka:
  enabled: false
push:
  url: http://localhost:8085/v1/send
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600))
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, int64(1<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, "BRL", cfg.Notification.DefaultCurrency)
	assert.Equal(t, "pt-BR", cfg.Notification.DefaultLocale)
	assert.Equal(t, 3, cfg.Outbox.MaxPublishAttempts)
	assert.Equal(t, "sale-events", cfg.Kafka.Topic.SaleEvents)
	assert.Equal(t, "gateway-webhooks", cfg.Kafka.Topic.GatewayWebhooks)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("WEBHOOK_DATABASE_HOST", "db.internal")
	t.Setenv("WEBHOOK_OUTBOX_FETCH_SIZE", "50")

	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 50, cfg.Outbox.FetchSize)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	assert.Error(t, err)
}

func TestGetInt(t *testing.T) {
	t.Setenv("TEST_GET_INT", "42")
	t.Setenv("TEST_GET_INT_BAD", "x")

	assert.Equal(t, 42, GetInt("TEST_GET_INT", 1))
	assert.Equal(t, 1, GetInt("TEST_GET_INT_BAD", 1))
	assert.Equal(t, 7, GetInt("TEST_GET_INT_UNSET", 7))
}
