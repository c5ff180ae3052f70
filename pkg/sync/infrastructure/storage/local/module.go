package local

import (
	"go.uber.org/fx"

	"github.com/syncline/syncline/pkg/sync/core/config"
	"github.com/syncline/syncline/pkg/sync/core/port"
	"github.com/syncline/syncline/pkg/sync/support/util/exception"
)

// newSinkFromConfig builds the audit sink named by the audit_sink_ref entry.
func newSinkFromConfig(cfg *config.Config) (*LocalAuditSink, error) {
	name := cfg.Syncline.Infrastructure.AuditSinkRef
	raw, ok := cfg.Syncline.AuditSinks[name]
	if !ok {
		return nil, exception.NewSyncErrorf(moduleName, "audit sink %q is not configured", name,
			exception.ErrValidation)
	}
	sinkCfg, err := DecodeConfig(raw)
	if err != nil {
		return nil, err
	}
	return NewLocalAuditSink(sinkCfg)
}

// Module is an Fx module that provides LocalAuditSink as the port.AuditSink
// interface and closes it on shutdown.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			newSinkFromConfig,
			fx.As(new(port.AuditSink)),
		),
	),
	fx.Invoke(func(lc fx.Lifecycle, sink port.AuditSink) {
		lc.Append(fx.StopHook(func() error {
			return sink.Close()
		}))
	}),
)
