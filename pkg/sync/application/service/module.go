package service

import (
	"go.uber.org/fx"
)

// Module is an Fx module that provides the caller-facing sync service.
var Module = fx.Options(
	fx.Provide(NewSyncService),
)
