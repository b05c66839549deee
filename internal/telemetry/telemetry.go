// Package telemetry provides OpenTelemetry tracing and metrics for the
// evaluation pipeline. When disabled every call is a no-op.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/ppiankov/safeguard/internal/model"
)

const instrumentationName = "github.com/ppiankov/safeguard"

// Span names, one per pipeline stage
const (
	SpanEvaluate = "safeguard.evaluate"
	SpanRules    = "safeguard.rules"
	SpanEvidence = "safeguard.evidence"
	SpanDecision = "safeguard.decision"
	SpanExplain  = "safeguard.explain"
	SpanChat     = "safeguard.chat"
)

// Provider owns the tracer, meter and pipeline instruments
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	logger         *slog.Logger

	decisions metric.Int64Counter
	fallbacks metric.Int64Counter
	duration  metric.Float64Histogram
}

// Option customises New; used by tests to capture telemetry in memory
type Option func(*options)

type options struct {
	spanExporter sdktrace.SpanExporter
	metricReader sdkmetric.Reader
}

// WithSpanExporter replaces the OTLP trace exporter
func WithSpanExporter(e sdktrace.SpanExporter) Option {
	return func(o *options) { o.spanExporter = e }
}

// WithMetricReader replaces the periodic OTLP metric reader
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(o *options) { o.metricReader = r }
}

// New creates a provider. With cfg disabled and no options it is a no-op.
func New(ctx context.Context, cfg *model.TelemetryConfig, opts ...Option) (*Provider, error) {
	if cfg == nil {
		cfg = &model.TelemetryConfig{}
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	p := &Provider{logger: slog.Default().With("component", "telemetry")}

	injected := o.spanExporter != nil || o.metricReader != nil
	if !cfg.Enabled && !injected {
		p.tracer = tracenoop.NewTracerProvider().Tracer(instrumentationName)
		p.meter = metricnoop.NewMeterProvider().Meter(instrumentationName)
		if err := p.initInstruments(); err != nil {
			return nil, err
		}
		return p, nil
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "safeguard"
	}
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(model.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	if o.spanExporter == nil {
		if o.spanExporter, err = newTraceExporter(ctx, cfg); err != nil {
			return nil, err
		}
	}
	if o.metricReader == nil {
		exporter, err := newMetricExporter(ctx, cfg)
		if err != nil {
			return nil, err
		}
		o.metricReader = sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(o.spanExporter, sdktrace.WithBatchTimeout(5*time.Second)),
	)
	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(o.metricReader),
	)
	p.tracer = p.tracerProvider.Tracer(instrumentationName, trace.WithInstrumentationVersion(model.Version))
	p.meter = p.meterProvider.Meter(instrumentationName, metric.WithInstrumentationVersion(model.Version))

	if err := p.initInstruments(); err != nil {
		return nil, err
	}

	if !injected {
		otel.SetTracerProvider(p.tracerProvider)
		otel.SetMeterProvider(p.meterProvider)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		p.logger.InfoContext(ctx, "telemetry initialized",
			"service", serviceName,
			"endpoint", cfg.Endpoint,
			"insecure", cfg.Insecure,
		)
	}

	return p, nil
}

func newTraceExporter(ctx context.Context, cfg *model.TelemetryConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	return exporter, nil
}

func newMetricExporter(ctx context.Context, cfg *model.TelemetryConfig) (sdkmetric.Exporter, error) {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}
	return exporter, nil
}

func (p *Provider) initInstruments() error {
	var err error

	p.decisions, err = p.meter.Int64Counter("safeguard.decisions.total",
		metric.WithDescription("Evaluations by decision and severity"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return fmt.Errorf("create decisions counter: %w", err)
	}

	p.fallbacks, err = p.meter.Int64Counter("safeguard.search.fallbacks.total",
		metric.WithDescription("Searches routed to the fallback provider"),
		metric.WithUnit("{search}"),
	)
	if err != nil {
		return fmt.Errorf("create fallbacks counter: %w", err)
	}

	p.duration, err = p.meter.Float64Histogram("safeguard.evaluate.duration",
		metric.WithDescription("End-to-end evaluation latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return fmt.Errorf("create duration histogram: %w", err)
	}

	return nil
}

// StartSpan starts a stage span
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal), trace.WithAttributes(attrs...))
}

// RecordDecision counts one finished evaluation
func (p *Provider) RecordDecision(ctx context.Context, decision model.Decision, severity model.Severity) {
	p.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("decision", string(decision)),
		attribute.String("severity", string(severity)),
	))
}

// RecordFallback counts one query sent to the fallback search provider
func (p *Provider) RecordFallback(ctx context.Context, provider string) {
	p.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
}

// RecordDuration records evaluation latency
func (p *Provider) RecordDuration(ctx context.Context, d time.Duration, operation string) {
	p.duration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("operation", operation)))
}

// Shutdown flushes and stops the providers
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown trace provider: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown metric provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ForceFlush exports buffered spans immediately
func (p *Provider) ForceFlush(ctx context.Context) error {
	if p.tracerProvider == nil {
		return nil
	}
	return p.tracerProvider.ForceFlush(ctx)
}
