// Package telemetry wires OpenTelemetry metrics to a Prometheus registry.
package telemetry

import (
	"context"
	"fmt"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MeterName scopes every instrument this module creates.
const MeterName = "orchestrator-runner"

// Service owns the meter provider and the registry behind /metrics.
type Service struct {
	meter    metric.Meter
	provider *sdkmetric.MeterProvider
	registry *prom.Registry
}

// New creates a new Service. When disabled every instrument is a no-op and
// the exporter handler answers 503.
func New(enabled bool) (*Service, error) {
	if !enabled {
		return &Service{meter: noop.NewMeterProvider().Meter(MeterName)}, nil
	}
	registry := prom.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	return &Service{
		meter:    provider.Meter(MeterName),
		provider: provider,
		registry: registry,
	}, nil
}

// Meter returns the meter for custom instruments.
func (s *Service) Meter() metric.Meter {
	return s.meter
}

// Handler serves the Prometheus exposition format.
func (s *Service) Handler() http.Handler {
	if s.registry == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "metrics disabled", http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the provider.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.provider == nil {
		return nil
	}
	return s.provider.Shutdown(ctx)
}
