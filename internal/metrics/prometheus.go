// Package metrics exports scenario and step counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric names.
const (
	MetricScenariosTotal      = "apipath_scenarios_total"
	MetricStepsTotal          = "apipath_steps_total"
	MetricStepDurationSeconds = "apipath_step_duration_seconds"
	MetricTransportErrors     = "apipath_transport_errors_total"
)

// Collector records executor activity on a private registry.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type Collector struct {
	registry        *prometheus.Registry
	scenariosTotal  *prometheus.CounterVec
	stepsTotal      *prometheus.CounterVec
	stepDuration    *prometheus.HistogramVec
	transportErrors *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry so repeated construction
// in tests does not collide with the default registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		scenariosTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricScenariosTotal,
			Help: "Executed scenarios by verdict and expected verdict.",
		}, []string{"verdict", "expected"}),
		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricStepsTotal,
			Help: "HTTP steps by endpoint and status class.",
		}, []string{"endpoint", "code_class"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricStepDurationSeconds,
			Help:    "HTTP step latency by endpoint.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		transportErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricTransportErrors,
			Help: "Steps that failed before a response was received.",
		}, []string{"endpoint"}),
	}
	c.registry.MustRegister(c.scenariosTotal, c.stepsTotal, c.stepDuration, c.transportErrors)
	return c
}

// ObserveStep records a completed HTTP step.
func (c *Collector) ObserveStep(endpoint string, statusCode int, duration time.Duration) {
	c.stepsTotal.WithLabelValues(endpoint, CodeClass(statusCode)).Inc()
	c.stepDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// ObserveTransportError records a step that never got a response.
func (c *Collector) ObserveTransportError(endpoint string) {
	c.transportErrors.WithLabelValues(endpoint).Inc()
}

// ObserveScenario records a finished scenario.
func (c *Collector) ObserveScenario(verdict, expected string) {
	c.scenariosTotal.WithLabelValues(verdict, expected).Inc()
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the HTTP handler serving the metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// CodeClass maps a status code to its class label, e.g. 404 -> "4xx".
func CodeClass(statusCode int) string {
	if statusCode < 100 || statusCode > 599 {
		return "unknown"
	}
	return strconv.Itoa(statusCode/100) + "xx"
}
