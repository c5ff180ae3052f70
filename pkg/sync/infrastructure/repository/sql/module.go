package sql

import (
	"go.uber.org/fx"

	repository "github.com/syncline/syncline/pkg/sync/core/domain/repository"
	"github.com/syncline/syncline/pkg/sync/infrastructure/database"
)

// Module is an Fx module that provides SQLSyncRepository as the
// repository.SyncRepository interface, backed by the configured metadata
// database connection.
var Module = fx.Options(
	fx.Provide(database.OpenFromConfig),
	fx.Provide(
		fx.Annotate(
			NewSQLSyncRepository,
			fx.As(new(repository.SyncRepository)),
		),
	),
)
