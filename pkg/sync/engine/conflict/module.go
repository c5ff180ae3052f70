package conflict

import (
	"go.uber.org/fx"

	"github.com/syncline/syncline/pkg/sync/core/config"
	"github.com/syncline/syncline/pkg/sync/core/domain/repository"
	"github.com/syncline/syncline/pkg/sync/core/metrics"
	"github.com/syncline/syncline/pkg/sync/core/port"
)

// NewResolverFromConfig builds a Resolver with the configured backoff policy.
func NewResolverFromConfig(cfg *config.Config, repo repository.SyncRepository, audit port.AuditSink, recorder metrics.MetricRecorder) *Resolver {
	return NewResolver(repo, audit, recorder, NewBackoffPolicy(cfg.Syncline.Engine.ConflictRetry))
}

// Module is an Fx module that provides the Conflict Resolver.
var Module = fx.Options(
	fx.Provide(NewResolverFromConfig),
	fx.Invoke(func(lc fx.Lifecycle, r *Resolver) {
		lc.Append(fx.StopHook(func() {
			r.Close()
		}))
	}),
)
