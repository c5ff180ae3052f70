package orchestrator

import (
	"go.uber.org/fx"

	"github.com/syncline/syncline/pkg/sync/core/domain/repository"
	"github.com/syncline/syncline/pkg/sync/core/metrics"
	"github.com/syncline/syncline/pkg/sync/core/port"
	"github.com/syncline/syncline/pkg/sync/engine/conflict"
	"github.com/syncline/syncline/pkg/sync/engine/progress"
)

func newOrchestrator(
	repo repository.SyncRepository,
	resolver *conflict.Resolver,
	tracker *progress.Tracker,
	commerce port.CommerceClient,
	local port.LocalStore,
	audit port.AuditSink,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *Orchestrator {
	return NewOrchestrator(repo, resolver, tracker, commerce, local, audit, recorder, tracer)
}

// Module is an Fx module that provides the Sync Orchestrator and the
// Progress Tracker it feeds.
var Module = fx.Options(
	fx.Provide(progress.NewTracker),
	fx.Provide(newOrchestrator),
)
