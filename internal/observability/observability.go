// Package observability wires the coordinator's OpenTelemetry tracing
// and metrics. Metrics are recorded through the otel metrics API and
// exported in Prometheus exposition
// format via the otel/exporters/prometheus bridge, so `dccp serve` exposes
// one `/metrics` HTTP handler without hand-rolling a collector.
package observability

import (
	"context"
	"fmt"
	"net/http"

	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// tracerName is the span-producing package name every coordinate() span
// uses.
const tracerName = "github.com/carebridge/dccp/internal/workflow"

// meterName is the instrument-producing package name for workflow metrics.
const meterName = "github.com/carebridge/dccp/internal/workflow"

// Metrics holds the instruments the workflow coordinator records against.
type Metrics struct {
	StepDuration metric.Float64Histogram
	Outcomes     metric.Int64Counter
}

// Provider bundles the tracer and meter providers the process owns for
// its lifetime, plus the Prometheus HTTP handler to mount at /metrics.
type Provider struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	MetricsHandler http.Handler
	Metrics        *Metrics
}

// New constructs the tracer provider (stdout exporter; swapping to OTLP is
// a config-only change at the call site in cmd/dccp), the Prometheus-
// backed meter provider, and the workflow instruments.
func New(ctx context.Context) (*Provider, error) {
	traceExporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("observability: new stdout trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter))

	promExporter, err := otelprom.New()
	if err != nil {
		return nil, fmt.Errorf("observability: new prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(promExporter))

	meter := mp.Meter(meterName)
	stepDuration, err := meter.Float64Histogram(
		"dccp_workflow_step_duration_seconds",
		metric.WithDescription("Duration of each workflow step, by step name."),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: create step duration histogram: %w", err)
	}
	outcomes, err := meter.Int64Counter(
		"dccp_workflow_outcomes_total",
		metric.WithDescription("Count of completed coordinate() calls, by final outcome status."),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: create outcomes counter: %w", err)
	}

	return &Provider{
		TracerProvider: tp,
		MeterProvider:  mp,
		MetricsHandler: promhttp.Handler(),
		Metrics:        &Metrics{StepDuration: stepDuration, Outcomes: outcomes},
	}, nil
}

// Tracer returns the package-wide tracer for workflow spans.
func (p *Provider) Tracer() trace.Tracer {
	return p.TracerProvider.Tracer(tracerName)
}

// Shutdown flushes and stops both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if err := p.TracerProvider.Shutdown(ctx); err != nil {
		return err
	}
	return p.MeterProvider.Shutdown(ctx)
}
