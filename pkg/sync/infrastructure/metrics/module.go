package metrics

import (
	"go.uber.org/fx"

	"github.com/syncline/syncline/pkg/sync/core/config"
	metrics "github.com/syncline/syncline/pkg/sync/core/metrics"
)

// newAsyncPrometheusRecorder wraps the Prometheus recorder with the
// configured asynchronous buffer.
func newAsyncPrometheusRecorder(cfg *config.Config, prom *PrometheusRecorder) *AsyncRecorder {
	return NewAsyncRecorder(prom, cfg.Syncline.Engine.MetricsAsyncBufferSize)
}

// Module is an Fx module that provides the Prometheus-backed MetricRecorder
// and the tracing stub.
var Module = fx.Options(
	fx.Provide(NewPrometheusRecorder),
	fx.Provide(fx.Annotate(
		newAsyncPrometheusRecorder,
		fx.As(new(metrics.MetricRecorder)),
	)),
	fx.Provide(fx.Annotate(
		NewLoggingTracer,
		fx.As(new(metrics.Tracer)),
	)),
	fx.Invoke(func(lc fx.Lifecycle, r *AsyncRecorder) {
		lc.Append(fx.StopHook(func() {
			r.Close()
		}))
	}),
)
