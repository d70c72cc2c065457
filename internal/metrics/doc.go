// Package metrics exposes OpenTelemetry instruments through a Prometheus
// exporter: HTTP request durations (api_call), advisory lookups by result,
// and provider latency by fetcher.
package metrics
