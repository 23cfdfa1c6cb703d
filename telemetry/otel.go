package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// OTELConfig controls the watch-mode telemetry provider. With an empty
// endpoint, spans stay process-local and metrics are exposed only through
// the prometheus registry.
type OTELConfig struct {
	ServiceName string
	Endpoint    string
	Insecure    bool
	Traces      bool
	Metrics     bool
}

// Provider wraps OTEL tracer and meter providers for watch mode. One-shot
// audit runs use the global (noop) tracer instead and never pay this cost.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter

	auditDuration metric.Float64Histogram
	findingCount  metric.Int64Counter
	auditErrors   metric.Int64Counter
}

// NewProvider creates a telemetry provider.
func NewProvider(ctx context.Context, cfg OTELConfig) (*Provider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	p := &Provider{}

	if err := p.setupTracing(ctx, cfg, res); err != nil {
		return nil, err
	}

	if err := p.setupMetrics(ctx, cfg, res); err != nil {
		if p.tracerProvider != nil {
			_ = p.tracerProvider.Shutdown(ctx)
		}
		return nil, err
	}

	if err := p.initMetrics(); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Provider) setupTracing(ctx context.Context, cfg OTELConfig, res *resource.Resource) error {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}

	if cfg.Traces && cfg.Endpoint != "" {
		exp, err := createTraceExporter(ctx, cfg)
		if err != nil {
			return fmt.Errorf("create trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}

	p.tracerProvider = sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(p.tracerProvider)
	p.tracer = p.tracerProvider.Tracer("crategate")

	return nil
}

func (p *Provider) setupMetrics(ctx context.Context, cfg OTELConfig, res *resource.Resource) error {
	opts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
	}

	// Prometheus bridge feeds the /metrics endpoint in watch mode.
	promReader, err := otelprom.New()
	if err != nil {
		return fmt.Errorf("create prometheus reader: %w", err)
	}
	opts = append(opts, sdkmetric.WithReader(promReader))

	if cfg.Metrics && cfg.Endpoint != "" {
		exp, err := createMetricExporter(ctx, cfg)
		if err != nil {
			return fmt.Errorf("create metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
	}

	p.meterProvider = sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(p.meterProvider)
	p.meter = p.meterProvider.Meter("crategate")

	return nil
}

func createTraceExporter(ctx context.Context, cfg OTELConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.New(ctx, opts...)
}

func createMetricExporter(ctx context.Context, cfg OTELConfig) (sdkmetric.Exporter, error) {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	return otlpmetricgrpc.New(ctx, opts...)
}

func (p *Provider) initMetrics() error {
	var err error

	p.auditDuration, err = p.meter.Float64Histogram(
		"crategate_audit_duration_seconds",
		metric.WithDescription("Duration of full audit runs"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create audit_duration: %w", err)
	}

	p.findingCount, err = p.meter.Int64Counter(
		"crategate_findings_total",
		metric.WithDescription("Findings produced by audit runs"),
	)
	if err != nil {
		return fmt.Errorf("create finding_count: %w", err)
	}

	p.auditErrors, err = p.meter.Int64Counter(
		"crategate_audit_errors_total",
		metric.WithDescription("Audit runs aborted by errors"),
	)
	if err != nil {
		return fmt.Errorf("create audit_errors: %w", err)
	}

	return nil
}

// Tracer returns the tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// RecordAudit records one completed audit run.
func (p *Provider) RecordAudit(ctx context.Context, d time.Duration, findings int, passed bool) {
	attrs := metric.WithAttributes(attribute.Bool("passed", passed))
	p.auditDuration.Record(ctx, d.Seconds(), attrs)
	p.findingCount.Add(ctx, int64(findings), attrs)
}

// RecordError records an aborted audit run.
func (p *Provider) RecordError(ctx context.Context, stage string) {
	p.auditErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

// Shutdown flushes and shuts down the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown tracer: %w", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown meter: %w", err)
		}
	}
	return nil
}
