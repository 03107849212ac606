package observability

import (
	"context"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records artifact fetch telemetry through an OpenTelemetry
// meter exported on the Prometheus registry.
type Observability struct {
	meterProvider *metric.MeterProvider
	fetchDuration otelmetric.Float64Histogram
	fetchBytes    otelmetric.Int64Histogram
	fetchCount    otelmetric.Int64Counter
}

// New registers on the default Prometheus registry and installs the global meter provider.
func New(serviceName string) (*Observability, error) {
	o, err := NewWithRegisterer(serviceName, promclient.DefaultRegisterer)
	if err != nil {
		return nil, err
	}
	otel.SetMeterProvider(o.meterProvider)
	return o, nil
}

func NewWithRegisterer(serviceName string, reg promclient.Registerer) (*Observability, error) {
	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	meter := provider.Meter(serviceName)

	fetchDuration, err := meter.Float64Histogram(
		"artifact.fetch.duration",
		otelmetric.WithDescription("Model artifact fetch duration"),
		otelmetric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	fetchBytes, err := meter.Int64Histogram(
		"artifact.fetch.size",
		otelmetric.WithDescription("Model artifact size"),
		otelmetric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}
	fetchCount, err := meter.Int64Counter(
		"artifact.fetch.count",
		otelmetric.WithDescription("Model artifact fetches by source and status"),
	)
	if err != nil {
		return nil, err
	}

	return &Observability{
		meterProvider: provider,
		fetchDuration: fetchDuration,
		fetchBytes:    fetchBytes,
		fetchCount:    fetchCount,
	}, nil
}

// RecordArtifactFetch is safe to call on a nil receiver.
func (o *Observability) RecordArtifactFetch(ctx context.Context, source string, d time.Duration, size int, err error) {
	if o == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("source", source),
		attribute.String("status", status),
	)
	o.fetchCount.Add(ctx, 1, attrs)
	o.fetchDuration.Record(ctx, float64(d.Microseconds())/1000, attrs)
	if err == nil {
		o.fetchBytes.Record(ctx, int64(size), otelmetric.WithAttributes(attribute.String("source", source)))
	}
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil || o.meterProvider == nil {
		return nil
	}
	return o.meterProvider.Shutdown(ctx)
}
