// Package observability wires OpenTelemetry trace export into the
// pipeline. Spans from the expansion, retrieval, rerank, and injection
// tracers are batched and shipped over OTLP HTTP to a local collector.
//
// Export is best-effort: a collector that cannot be reached disables
// tracing with a warning instead of failing startup. The pipeline's
// degrade-over-fail policy applies to its own telemetry too.
package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/JoePa99/joeupup-sub002/internal/config"
)

// DefaultCollectorEndpoint is the default OTLP HTTP collector endpoint.
const DefaultCollectorEndpoint = "localhost:4318"

// Setup registers an OTLP HTTP exporter with Genkit's TracerProvider and
// installs that provider globally so the pipeline tracers feed it.
//
// Returns a shutdown function that flushes pending spans. When the
// exporter cannot be created, tracing is disabled and the returned
// shutdown is a no-op.
func Setup(ctx context.Context, cfg config.TracingConfig, logger *slog.Logger) (shutdown func(context.Context) error, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		return noop, nil
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultCollectorEndpoint
	}

	// Genkit's TracerProvider reads these at span-resource creation.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("failed to create trace exporter, tracing disabled", "error", err)
		return noop, nil
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	// The pipeline packages resolve their tracers through the global
	// provider; point it at Genkit's so all spans share one export path.
	otel.SetTracerProvider(tracing.TracerProvider())

	logger.Debug("tracing enabled",
		"endpoint", endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)
	return tracing.TracerProvider().Shutdown, nil
}
