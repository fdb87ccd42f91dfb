// internal/common/observability/metrics.go
package observability

import (
	"context"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/otlptranslator"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"

	"rental-process/internal/common/logger"
)

// Observability owns the otel meter used for write and query latency.
type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	writeCounter  otelmetric.Int64Counter
	writeDuration otelmetric.Float64Histogram
	queryDuration otelmetric.Float64Histogram
}

// New builds the meter on top of reg. A nil reg uses the default prometheus registerer.
func New(serviceName string, reg promclient.Registerer, log logger.Logger) *Observability {
	// Exported names follow the underscore convention of the promauto collectors.
	opts := []prometheus.Option{
		prometheus.WithTranslationStrategy(otlptranslator.UnderscoreEscapingWithSuffixes),
	}
	if reg != nil {
		opts = append(opts, prometheus.WithRegisterer(reg))
	}
	exporter, err := prometheus.New(opts...)
	if err != nil {
		if log != nil {
			log.Warn("failed to create prometheus exporter", map[string]interface{}{"error": err})
		}
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	writeCounter, _ := meter.Int64Counter(
		"process.writes",
		otelmetric.WithDescription("Number of process store writes"),
	)

	writeDuration, _ := meter.Float64Histogram(
		"process.write.duration",
		otelmetric.WithDescription("Process store write latency"),
		otelmetric.WithUnit("ms"),
	)

	queryDuration, _ := meter.Float64Histogram(
		"search.query.duration",
		otelmetric.WithDescription("Search query latency"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		writeCounter:  writeCounter,
		writeDuration: writeDuration,
		queryDuration: queryDuration,
	}
}

// RecordWrite counts one store write and its latency.
func (o *Observability) RecordWrite(ctx context.Context, op, outcome string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	)
	if o.writeCounter != nil {
		o.writeCounter.Add(ctx, 1, attrs)
	}
	if o.writeDuration != nil {
		o.writeDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) RecordQuery(ctx context.Context, view string, duration time.Duration) {
	if o == nil || o.queryDuration == nil {
		return
	}
	o.queryDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("view", view),
	))
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil || o.meterProvider == nil {
		return nil
	}
	return o.meterProvider.Shutdown(ctx)
}
