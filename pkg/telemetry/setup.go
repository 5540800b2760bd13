package telemetry

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/argus-labs/skirmish/pkg/assert"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	otelTrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// setupOpenTelemetry sets up OpenTelemetry for the service.
// It returns a tracer, logger, and shutdown function.
func setupOpenTelemetry(
	ctx context.Context,
	opts Options,
) (otelTrace.Tracer, zerolog.Logger, func(context.Context) error, error) {
	var shutdownFuncs []func(context.Context) error

	shutdown := func(ctx context.Context) error {
		var shutdownErrs error
		for _, fn := range shutdownFuncs {
			shutdownErrs = errors.Join(shutdownErrs, fn(ctx))
		}
		shutdownFuncs = nil
		return shutdownErrs
	}

	logger := newLogger(opts)
	fallback := noop.NewTracerProvider().Tracer(opts.ServiceName)

	if !opts.Enabled {
		return fallback, logger, shutdown, nil
	}

	res, err := newResource(opts)
	if err != nil {
		return fallback, logger, shutdown, errors.Join(err, shutdown(ctx))
	}

	otel.SetTextMapPropagator(newPropagator())

	tracerProvider, err := newTracerProvider(ctx, res, opts)
	if err != nil {
		return fallback, logger, shutdown, errors.Join(err, shutdown(ctx))
	}
	shutdownFuncs = append(shutdownFuncs, tracerProvider.Shutdown)
	otel.SetTracerProvider(tracerProvider)

	return tracerProvider.Tracer(opts.ServiceName), logger, shutdown, nil
}

func newResource(opts Options) (*resource.Resource, error) {
	return resource.Merge(resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(opts.ServiceName),
			semconv.ServiceVersion(opts.Version),
		))
}

func newPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

func newTracerProvider(ctx context.Context, res *resource.Resource, opts Options) (*trace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(opts.Endpoint), otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, eris.Wrap(err, "failed to create OTLP trace exporter")
	}

	return trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(newSampler(opts.TraceSampleRate)),
	), nil
}

func newSampler(rate float64) trace.Sampler {
	switch rate {
	case 1.0:
		return trace.AlwaysSample()
	case 0.0:
		return trace.NeverSample()
	default:
		return trace.ParentBased(trace.TraceIDRatioBased(rate))
	}
}

// newLogger creates a logger with the specified format.
func newLogger(opts Options) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(opts.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	var writer io.Writer
	switch opts.LogFormat {
	case LogFormatPretty:
		writer = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	case LogFormatJSON:
		writer = out
	case LogFormatUndefined:
		assert.That(false, "log format must be validated before the logger is built")
	}

	return zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Logger()
}
