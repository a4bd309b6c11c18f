package application

import (
	"log/slog"

	"github.com/amora-chat/amora/pkg/observability"
)

// Option customises a Service.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics observability.Metrics
}

// WithLogger sets the logger used by every billing component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(metrics observability.Metrics) Option {
	return func(o *options) { o.metrics = metrics }
}

func applyOptions(opts []Option) options {
	o := options{logger: slog.Default(), metrics: observability.NoopMetrics{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
