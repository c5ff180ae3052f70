package memory

import (
	"go.uber.org/fx"

	"github.com/syncline/syncline/pkg/sync/core/port"
)

// Module is an Fx module that provides the in-memory commerce client and
// local store as their port interfaces. Applications talking to real
// external systems provide their own adapters instead.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewMemoryCommerceClient,
			fx.As(new(port.CommerceClient)),
		),
	),
	fx.Provide(
		fx.Annotate(
			NewMemoryLocalStore,
			fx.As(new(port.LocalStore)),
		),
	),
)
