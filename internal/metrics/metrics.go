package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Metrics records API and advisory lookup metrics and exposes them in the
// Prometheus format. It implements advisory.Observer.
type Metrics struct {
	provider *metric.MeterProvider
	registry *prometheus.Registry

	apiTimeMetric api.Float64Histogram
	lookups       api.Int64Counter
	fetchTime     api.Float64Histogram
}

// New bootstraps the OpenTelemetry pipeline with a Prometheus exporter on a
// private registry. Call Shutdown when done.
func New() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, err
	}
	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	meter := provider.Meter("github.com/dshills/agriguard")

	apiTimeMetric, err := meter.Float64Histogram("api_call", api.WithDescription("api calls"))
	if err != nil {
		return nil, err
	}
	lookups, err := meter.Int64Counter("advisory_lookups",
		api.WithDescription("advisory lookups by result"))
	if err != nil {
		return nil, err
	}
	fetchTime, err := meter.Float64Histogram("advisory_provider_seconds",
		api.WithDescription("time spent waiting for the advisory provider"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		provider:      provider,
		registry:      registry,
		apiTimeMetric: apiTimeMetric,
		lookups:       lookups,
		fetchTime:     fetchTime,
	}, nil
}

// Handler serves the Prometheus exposition.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

// Middleware records the duration of every request except /metrics.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == "/metrics" {
				return next(c)
			}
			start := time.Now()
			err := next(c)
			elapsed := float64(time.Since(start)) / float64(time.Second)
			m.ObserveAPICall(c.Request().Method, c.Path(), elapsed)
			return err
		}
	}
}

func (m *Metrics) ObserveAPICall(method string, path string, duration float64) {
	opts := api.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
	)
	m.apiTimeMetric.Record(context.Background(), duration, opts)
}

func (m *Metrics) ObserveLookup(result string) {
	m.lookups.Add(context.Background(), 1, api.WithAttributes(attribute.String("result", result)))
}

func (m *Metrics) ObserveFetch(fetcher string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.fetchTime.Record(context.Background(), d.Seconds(), api.WithAttributes(
		attribute.String("fetcher", fetcher),
		attribute.String("outcome", outcome),
	))
}
