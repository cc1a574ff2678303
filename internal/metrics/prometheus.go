package metrics

import (
	"context"
	"net/http"
	"strconv"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "github.com/angeloszaimis/currency-exchange"

// Prometheus is a Recorder that re-exports events as OpenTelemetry
// instruments read by a Prometheus exporter on its own registry.
type Prometheus struct {
	registry *promclient.Registry
	provider *sdkmetric.MeterProvider

	cacheEvents     metric.Int64Counter
	requestDuration metric.Float64Histogram
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus builds the exporter. circuitOpen is polled on every scrape
// for the cache.circuit.open gauge and may be nil.
func NewPrometheus(serviceName string, circuitOpen func() bool) (*Prometheus, error) {
	registry := promclient.NewRegistry()

	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)
	meter := provider.Meter(meterName)

	cacheEvents, err := meter.Int64Counter(
		"cache.events",
		metric.WithDescription("Resilient cache events by cache, operation and kind"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	if circuitOpen != nil {
		_, err = meter.Int64ObservableGauge(
			"cache.circuit.open",
			metric.WithDescription("1 while the cache circuit is open"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				var v int64
				if circuitOpen() {
					v = 1
				}
				o.Observe(v)
				return nil
			}),
		)
		if err != nil {
			return nil, err
		}
	}

	return &Prometheus{
		registry:        registry,
		provider:        provider,
		cacheEvents:     cacheEvents,
		requestDuration: requestDuration,
	}, nil
}

func (p *Prometheus) Record(ctx context.Context, event MetricEvent) {
	switch event.Type {
	case EventCache:
		p.cacheEvents.Add(ctx, 1, metric.WithAttributes(
			attribute.String("cache.name", event.Cache.Cache),
			attribute.String("cache.op", string(event.Cache.Op)),
			attribute.String("cache.event", string(event.Cache.Kind)),
		))

	case EventRequestCompleted:
		p.requestDuration.Record(ctx, event.Duration.Seconds(), metric.WithAttributes(
			attribute.String("http.route", event.Route),
			attribute.String("http.response.status_code", strconv.Itoa(event.StatusCode)),
		))
	}
}

// Handler serves the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Prometheus) Shutdown(ctx context.Context) error {
	return p.provider.Shutdown(ctx)
}
