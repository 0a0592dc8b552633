package trace

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "agentdesk"

// Config selects where spans are exported besides the local processors.
type Config struct {
	Endpoint string // host:port of an OTLP/HTTP collector; empty disables export
	URLPath  string // traces path on the collector, default /v1/traces
	APIKey   string // sent as a bearer token
	Secure   bool   // use https
}

type errorHandler struct{}

func (errorHandler) Handle(err error) {
	slog.Warn("otel error", "error", err)
}

// Init installs the global tracer provider. Spans go to every processor in
// procs, synchronously, and in batches to the OTLP collector when one is
// configured. The returned shutdown flushes both.
func Init(ctx context.Context, cfg Config, procs ...sdktrace.SpanProcessor) (shutdown func(context.Context) error, err error) {
	otel.SetErrorHandler(errorHandler{})

	res, err := resource.Merge(resource.Default(),
		resource.NewSchemaless(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("trace resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	for _, p := range procs {
		opts = append(opts, sdktrace.WithSpanProcessor(p))
	}

	if cfg.Endpoint != "" {
		exporter, err := otlptracehttp.New(ctx, exporterOptions(cfg)...)
		if err != nil {
			return nil, fmt.Errorf("otlp exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
		slog.Debug("exporting traces", "endpoint", cfg.Endpoint, "path", cfg.URLPath)
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp.Shutdown, nil
}

func exporterOptions(cfg Config) []otlptracehttp.Option {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if !cfg.Secure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if cfg.URLPath != "" {
		opts = append(opts, otlptracehttp.WithURLPath(cfg.URLPath))
	}
	if cfg.APIKey != "" {
		opts = append(opts, otlptracehttp.WithHeaders(map[string]string{
			"Authorization": "Bearer " + cfg.APIKey,
		}))
	}
	return opts
}

// Tracer returns the agentdesk tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(serviceName)
}
