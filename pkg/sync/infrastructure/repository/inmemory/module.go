// Package inmemory provides an in-memory implementation of the
// SyncRepository interface. This module integrates it into the application's
// dependency graph using Fx.
package inmemory

import (
	"go.uber.org/fx"

	repository "github.com/syncline/syncline/pkg/sync/core/domain/repository"
)

// Module is an Fx module that provides InMemorySyncRepository as the
// repository.SyncRepository interface.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewInMemorySyncRepository,
			fx.As(new(repository.SyncRepository)),
		),
	),
)
