package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/syncline/syncline/pkg/sync/support/util/exception"
	"github.com/syncline/syncline/pkg/sync/support/util/logger"

	"go.uber.org/fx"
)

const moduleName = "config"


// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig // EmbeddedConfig contains the raw bytes of the configuration file.
	EnvFilePath    string         `name:"envFilePath" optional:"true"` // EnvFilePath is the path to the .env file, if any.
}

// loadConfig loads configuration from the embedded YAML and environment
// variables. It is intended to be called once during application startup.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewDefaultConfig()

	if len(embeddedConfig) > 0 {
		if err := yaml.Unmarshal(embeddedConfig, cfg); err != nil {
			return nil, exception.NewSyncError(moduleName, "failed to unmarshal embedded config", err, false, false)
		}
	}

	// The root "syncline" yaml tag yields the SYNCLINE_ env prefix.
	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewSyncError(moduleName, "failed to load config from environment variables", err, false, false)
	}
	return cfg, nil
}

// NewConfigProvider is an Fx provider that loads and provides *Config.
// It merges defaults, embedded YAML, and environment-variable overrides, and
// sets the global logger level.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig)
	if err != nil {
		return nil, err
	}

	logger.SetLogLevel(cfg.Syncline.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Syncline.System.Logging.Level)

	return cfg, nil
}

// LoadConfig loads configuration from configuration files and environment
// variables. It is expected to be called once during application startup.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	return loadConfig(envFilePath, embeddedConfig)
}

// loadStructFromEnv walks a struct recursively and overrides fields from
// environment variables. The variable name is the upper-cased chain of yaml
// tags joined with underscores (e.g. SYNCLINE_ENGINE_DEFAULT_BATCH_SIZE).
func loadStructFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		yamlTag = strings.Split(yamlTag, ",")[0]

		envVarName := strings.ToUpper(prefix + yamlTag)

		switch field.Kind() {
		case reflect.Struct:
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
		case reflect.String:
			if val, ok := os.LookupEnv(envVarName); ok {
				field.SetString(val)
			}
		case reflect.Int:
			if val, ok := os.LookupEnv(envVarName); ok {
				n, err := strconv.Atoi(val)
				if err != nil {
					return exception.NewSyncErrorf(moduleName, "environment variable %s is not an integer: %q", envVarName, val, err)
				}
				field.SetInt(int64(n))
			}
		case reflect.Float64:
			if val, ok := os.LookupEnv(envVarName); ok {
				f, err := strconv.ParseFloat(val, 64)
				if err != nil {
					return exception.NewSyncErrorf(moduleName, "environment variable %s is not a float: %q", envVarName, val, err)
				}
				field.SetFloat(f)
			}
		case reflect.Bool:
			if val, ok := os.LookupEnv(envVarName); ok {
				b, err := strconv.ParseBool(val)
				if err != nil {
					return exception.NewSyncErrorf(moduleName, "environment variable %s is not a bool: %q", envVarName, val, err)
				}
				field.SetBool(b)
			}
		default:
			// Maps and slices are configured via YAML only.
		}
	}
	return nil
}
