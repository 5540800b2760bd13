// Package telemetry builds the logger and tracer shared by every component of a process.
// Settings come from OTEL_* environment variables, overridden by the options passed to New.
package telemetry

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type Telemetry struct {
	Logger      zerolog.Logger
	Tracer      trace.Tracer
	serviceName string

	shutdown func(context.Context) error
}

func New(ctx context.Context, opts Options) (Telemetry, error) {
	config, err := loadConfig()
	if err != nil {
		return Telemetry{}, eris.Wrap(err, "failed to load otel config")
	}

	options := newDefaultOptions()
	config.applyToOptions(&options)
	options.apply(opts)
	if err := options.validate(); err != nil {
		return Telemetry{}, eris.Wrap(err, "invalid otel options")
	}

	tracer, logger, shutdown, err := setupOpenTelemetry(ctx, options)
	if err != nil {
		return Telemetry{}, eris.Wrap(err, "failed to setup telemetry")
	}

	return Telemetry{
		Logger:      logger,
		Tracer:      tracer,
		serviceName: options.ServiceName,
		shutdown:    shutdown,
	}, nil
}

// Shutdown flushes pending spans and stops the exporter.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.shutdown != nil {
		return t.shutdown(ctx)
	}
	return nil
}

// GetLogger returns a component-specific logger.
func (t *Telemetry) GetLogger(component string) zerolog.Logger {
	return t.Logger.With().Str("component", t.serviceName+"."+component).Logger()
}

// GetLoggerWithTrace returns a component-specific logger enriched with trace context.
func (t *Telemetry) GetLoggerWithTrace(ctx context.Context, component string) zerolog.Logger {
	return WithTrace(ctx, t.GetLogger(component))
}

// WithTrace adds the trace and span IDs of the span in ctx to the logger, if it is recording.
func WithTrace(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return logger
	}
	spanCtx := span.SpanContext()
	return logger.With().
		Str("trace_id", spanCtx.TraceID().String()).
		Str("span_id", spanCtx.SpanID().String()).
		Logger()
}
