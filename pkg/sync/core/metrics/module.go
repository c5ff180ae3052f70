package metrics

import (
	"go.uber.org/fx"
)

// Module is an Fx module that provides metrics-related components.
// By default it provides NoOpMetricRecorder; the infrastructure layer's
// Prometheus module takes its place when included in the application.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewNoOpMetricRecorder,
		fx.As(new(MetricRecorder)),
	)),
	fx.Provide(fx.Annotate(
		NewNoOpTracer,
		fx.As(new(Tracer)),
	)),
)
