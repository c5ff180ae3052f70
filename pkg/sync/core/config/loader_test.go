package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncline/syncline/pkg/sync/core/config"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Syncline.Engine.DefaultBatchSize)
	assert.Equal(t, 300, cfg.Syncline.Engine.Delta.CacheTTLSeconds)
	assert.Equal(t, 100, cfg.Syncline.Engine.Delta.SampleLimit)
	assert.Equal(t, 3, cfg.Syncline.Engine.ConflictRetry.MaxAttempts)
	assert.Equal(t, 1000, cfg.Syncline.Engine.ConflictRetry.InitialIntervalMs)
	assert.Equal(t, 2.0, cfg.Syncline.Engine.ConflictRetry.Multiplier)
	assert.Equal(t, "UTC", cfg.Syncline.System.Timezone)
	assert.Equal(t, "INFO", cfg.Syncline.System.Logging.Level)
	assert.Equal(t, "metadata", cfg.Syncline.Infrastructure.RepositoryDBRef)
	assert.Equal(t, "audit", cfg.Syncline.Infrastructure.AuditSinkRef)
}

func TestLoadConfig_EmbeddedYAMLOverridesDefaults(t *testing.T) {
	embedded := config.EmbeddedConfig(`
syncline:
  engine:
    default_batch_size: 25
    delta:
      cache_ttl_seconds: 60
    conflict_retry:
      max_attempts: 5
  system:
    logging:
      level: DEBUG
  database:
    metadata:
      type: sqlite
      database: ./test.db
  audit:
    audit:
      type: local
      path: ./audit.jsonl
`)

	cfg, err := config.LoadConfig("", embedded)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Syncline.Engine.DefaultBatchSize)
	assert.Equal(t, 60, cfg.Syncline.Engine.Delta.CacheTTLSeconds)
	assert.Equal(t, 5, cfg.Syncline.Engine.ConflictRetry.MaxAttempts)
	// Untouched values keep their defaults.
	assert.Equal(t, 1000, cfg.Syncline.Engine.ConflictRetry.InitialIntervalMs)
	assert.Equal(t, "DEBUG", cfg.Syncline.System.Logging.Level)

	db, ok := cfg.Syncline.Databases["metadata"]
	require.True(t, ok)
	assert.Equal(t, "sqlite", db.Type)
	assert.Equal(t, "./test.db", db.Database)

	sink, ok := cfg.Syncline.AuditSinks["audit"]
	require.True(t, ok)
	assert.Equal(t, "local", sink["type"])
}

func TestLoadConfig_EnvOverridesYAML(t *testing.T) {
	t.Setenv("SYNCLINE_ENGINE_DEFAULT_BATCH_SIZE", "10")
	t.Setenv("SYNCLINE_ENGINE_CONFLICT_RETRY_MULTIPLIER", "3.5")
	t.Setenv("SYNCLINE_SYSTEM_LOGGING_LEVEL", "WARN")

	embedded := config.EmbeddedConfig(`
syncline:
  engine:
    default_batch_size: 25
`)

	cfg, err := config.LoadConfig("", embedded)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Syncline.Engine.DefaultBatchSize)
	assert.Equal(t, 3.5, cfg.Syncline.Engine.ConflictRetry.Multiplier)
	assert.Equal(t, "WARN", cfg.Syncline.System.Logging.Level)
}

func TestLoadConfig_InvalidEnvValue(t *testing.T) {
	t.Setenv("SYNCLINE_ENGINE_DEFAULT_BATCH_SIZE", "lots")

	_, err := config.LoadConfig("", nil)
	assert.Error(t, err)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	_, err := config.LoadConfig("", config.EmbeddedConfig("syncline: ["))
	assert.Error(t, err)
}
