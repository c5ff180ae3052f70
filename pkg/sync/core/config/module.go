package config

import (
	"go.uber.org/fx"
)

// Module is the Fx module that provides the application *Config.
// The embedded configuration bytes are expected to be supplied by the
// application (fx.Supply of config.EmbeddedConfig).
var Module = fx.Options(
	fx.Provide(NewConfigProvider),
)
