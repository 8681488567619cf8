package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadflow/internal/models"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
storage: memory
jwt:
  secret: s3cret
`))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Workflow.MaxAttempts)
	assert.Equal(t, 4, cfg.Dispatch.Workers)
	assert.Equal(t, 256, cfg.Dispatch.Buffer)
	assert.Equal(t, 5*time.Second, cfg.Dispatch.DeliveryTimeout)
	require.NotNil(t, cfg.Dispatch.MaxRetries)
	assert.Equal(t, 3, *cfg.Dispatch.MaxRetries)
	assert.Equal(t, []models.Stage{models.StageHotEngaged, models.StageClosedWon}, cfg.Notifications.HighSalience)
	assert.Equal(t, "leadflow:automation", cfg.Automation.QueueKey)
	assert.False(t, cfg.Workflow.Reactivation.Enabled)
}

func TestParseExpandsEnvAndStages(t *testing.T) {
	t.Setenv("LEADFLOW_TEST_SECRET", "from-env")
	t.Setenv("LEADFLOW_TEST_DSN", "postgres://crm@db/crm?sslmode=disable")

	cfg, err := Parse([]byte(`
database:
  dialect: postgres
  url: ${LEADFLOW_TEST_DSN}
jwt:
  secret: ${LEADFLOW_TEST_SECRET}
workflow:
  max_attempts: 5
  reactivation:
    enabled: true
  require_reason_for: [disqualified, " CLOSED_LOST "]
dispatch:
  delivery_timeout: 750ms
notifications:
  high_salience: [CLOSED_WON]
`))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, "postgres://crm@db/crm?sslmode=disable", cfg.Database.DSN)
	assert.Equal(t, 5, cfg.Workflow.MaxAttempts)
	assert.True(t, cfg.Workflow.Reactivation.Enabled)
	assert.Equal(t, []models.Stage{models.StageDisqualified, models.StageClosedLost}, cfg.Workflow.RequireReasonFor)
	assert.Equal(t, 750*time.Millisecond, cfg.Dispatch.DeliveryTimeout)
	assert.Equal(t, []models.Stage{models.StageClosedWon}, cfg.Notifications.HighSalience)
}

func TestParseKeepsZeroRetries(t *testing.T) {
	cfg, err := Parse([]byte("storage: memory\njwt: {secret: x}\ndispatch: {max_retries: 0}\n"))
	require.NoError(t, err)
	require.NotNil(t, cfg.Dispatch.MaxRetries)
	assert.Equal(t, 0, *cfg.Dispatch.MaxRetries)

	_, err = Parse([]byte("storage: memory\njwt: {secret: x}\ndispatch: {max_retries: -1}\n"))
	assert.Error(t, err)
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"unknown stage":    "storage: memory\njwt: {secret: x}\nautomation: {stages: [LIMBO]}\n",
		"unknown field":    "storage: memory\njwt: {secret: x}\nbogus: 1\n",
		"missing secret":   "storage: memory\n",
		"missing dsn":      "jwt: {secret: x}\n",
		"bad dialect":      "jwt: {secret: x}\ndatabase: {dialect: mysql, url: x}\n",
		"redis lock":       "storage: memory\njwt: {secret: x}\nworkflow: {use_redis_lock: true}\n",
		"telegram no chat": "storage: memory\njwt: {secret: x}\nnotifications: {telegram: {token: t}}\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigAndResolvePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "leadflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage: memory\njwt: {secret: x}\n"), 0o600))

	t.Setenv(EnvPath, path)
	assert.Equal(t, path, ResolvePath(""))
	assert.Equal(t, "other.yaml", ResolvePath("other.yaml"))

	cfg, err := LoadConfig(ResolvePath(""))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
