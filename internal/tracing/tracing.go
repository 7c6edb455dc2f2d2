// Package tracing hooks the indexer into an OTLP collector. Span volume is
// low by construction: the orchestrator opens one span per chain per pass, so
// a handful of spans per tick. Sampling defaults to keep-everything and only
// backs off when a ratio is configured for dense multi-chain deployments.
package tracing

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const serviceName = "campaign-indexer"

// Version is stamped into the service resource. Overridden at build time:
// -ldflags "-X github.com/launchkit/campaign-indexer/internal/tracing.Version=...".
var Version = "dev"

// Config carries what Init needs. An empty Endpoint disables export.
type Config struct {
	Endpoint string
	// Insecure selects plaintext gRPC, for local or in-cluster collectors.
	Insecure bool
	// SampleRatio in (0, 1) enables ratio sampling of pass spans; anything
	// else keeps every span.
	SampleRatio float64
	// ChainIDs is the configured chain set, recorded on the resource so
	// traces from differently-scoped deployments are tellable apart.
	ChainIDs []int64
}

// Init installs the global tracer provider and returns its shutdown hook.
// Without an endpoint the provider is a noop, so call sites never branch on
// whether tracing is enabled.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if cfg.Endpoint == "" {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(Version),
			attribute.String("indexer.chain_ids", chainList(cfg.ChainIDs)),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// Tracer returns a named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// chainList renders the chain set as a stable ascending comma-joined string.
func chainList(ids []int64) string {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
