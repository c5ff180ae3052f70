package delta

import (
	"time"

	"go.uber.org/fx"

	"github.com/syncline/syncline/pkg/sync/core/config"
	"github.com/syncline/syncline/pkg/sync/core/metrics"
	"github.com/syncline/syncline/pkg/sync/core/port"
)

// NewEngineFromConfig builds a Delta Engine with the configured TTL and
// sample limit.
func NewEngineFromConfig(cfg *config.Config, commerce port.CommerceClient, local port.LocalStore, recorder metrics.MetricRecorder) *Engine {
	return NewEngine(commerce, local, recorder, Options{
		CacheTTL:    time.Duration(cfg.Syncline.Engine.Delta.CacheTTLSeconds) * time.Second,
		SampleLimit: cfg.Syncline.Engine.Delta.SampleLimit,
	})
}

// Module is an Fx module that provides the Delta Engine.
var Module = fx.Options(
	fx.Provide(NewEngineFromConfig),
)
