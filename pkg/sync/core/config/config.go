// Package config provides structures and utilities for managing the
// Syncline engine configuration.
package config

// EmbeddedConfig holds the content of the configuration file, typically
// passed from main.go when the YAML is embedded into the binary.
type EmbeddedConfig []byte

// LogLevel defines the logging level for the application.
type LogLevel string

const (
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelFatal  LogLevel = "FATAL"
	LogLevelSilent LogLevel = "SILENT"
)

// ConflictRetryConfig holds the backoff parameters applied to conflict
// auto-retry resolution.
type ConflictRetryConfig struct {
	MaxAttempts       int     `yaml:"max_attempts"`        // MaxAttempts is the retry ceiling per conflict.
	InitialIntervalMs int     `yaml:"initial_interval_ms"` // InitialIntervalMs is the first backoff delay in milliseconds.
	Multiplier        float64 `yaml:"multiplier"`          // Multiplier grows the delay per attempt (2.0 for exponential doubling).
}

// DeltaConfig holds the Delta Engine settings.
type DeltaConfig struct {
	// CacheTTLSeconds is the time-to-live of memoized delta results.
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
	// SampleLimit bounds how many external records a preview fetches and how
	// many examples each delta category carries.
	SampleLimit int `yaml:"sample_limit"`
}

// EngineConfig holds configuration specific to the reconciliation engine.
type EngineConfig struct {
	// DefaultBatchSize is the batch size used when a job config omits one.
	DefaultBatchSize int `yaml:"default_batch_size"`
	// Delta is the Delta Engine configuration.
	Delta DeltaConfig `yaml:"delta"`
	// ConflictRetry is the conflict auto-retry backoff configuration.
	ConflictRetry ConflictRetryConfig `yaml:"conflict_retry"`
	// MetricsAsyncBufferSize is the buffer size for asynchronous metric recording.
	MetricsAsyncBufferSize int `yaml:"metrics_async_buffer_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone (e.g., "UTC").
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// DatabaseConfig describes one named database connection.
type DatabaseConfig struct {
	Type     string `yaml:"type"` // "sqlite", "postgres" or "mysql"
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// InfrastructureConfig holds logical dependency settings for infrastructure
// components.
type InfrastructureConfig struct {
	// RepositoryDBRef is the name of the database connection used by the sync
	// metadata repositories (e.g., "metadata").
	RepositoryDBRef string `yaml:"repository_db_ref"`
	// AuditSinkRef is the name of the audit sink connection used for the
	// append-only conflict/resolution/batch log (e.g., "audit").
	AuditSinkRef string `yaml:"audit_sink_ref"`
}

// SynclineConfig holds all configuration under the "syncline" top-level key.
type SynclineConfig struct {
	// Engine contains reconciliation-engine specific configuration.
	Engine EngineConfig `yaml:"engine"`
	// System contains system-wide configuration.
	System SystemConfig `yaml:"system"`
	// Infrastructure contains infrastructure-related configuration.
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	// Databases holds named database connection configurations.
	Databases map[string]DatabaseConfig `yaml:"database"`
	// AuditSinks holds named audit sink configurations, decoded by each
	// adapter via mapstructure.
	AuditSinks map[string]map[string]interface{} `yaml:"audit"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	// Syncline contains the top-level configuration for the engine.
	Syncline SynclineConfig `yaml:"syncline"`
	// EmbeddedConfig holds configuration loaded from an embedded source, not from YAML.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewDefaultConfig returns a Config populated with the engine defaults.
// Values loaded from YAML or the environment override these.
func NewDefaultConfig() *Config {
	return &Config{
		Syncline: SynclineConfig{
			Engine: EngineConfig{
				DefaultBatchSize: 50,
				Delta: DeltaConfig{
					CacheTTLSeconds: 300,
					SampleLimit:     100,
				},
				ConflictRetry: ConflictRetryConfig{
					MaxAttempts:       3,
					InitialIntervalMs: 1000,
					Multiplier:        2.0,
				},
				MetricsAsyncBufferSize: 256,
			},
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Infrastructure: InfrastructureConfig{
				RepositoryDBRef: "metadata",
				AuditSinkRef:    "audit",
			},
			Databases:  make(map[string]DatabaseConfig),
			AuditSinks: make(map[string]map[string]interface{}),
		},
	}
}
