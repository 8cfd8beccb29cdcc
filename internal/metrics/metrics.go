// Package metrics provides Prometheus collectors for the advice service.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"example.com/stackapp/backend/internal/advice"
)

const namespace = "stackapp"

type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	AdviceRequestsTotal *prometheus.CounterVec
	AdviceDuration      *prometheus.HistogramVec
	BackendInvocations  *prometheus.CounterVec
	FallbacksTotal      *prometheus.CounterVec
	GateRejectionsTotal *prometheus.CounterVec
	RegisteredBackends  *prometheus.GaugeVec
}

// New создает собственный реестр и регистрирует в нем все метрики.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(reg)
	m := &Metrics{registry: reg}

	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route, method, and status class",
		},
		[]string{"route", "method", "status"},
	)

	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"route", "method"},
	)

	m.HTTPRequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)

	m.AdviceRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "advice",
			Name:      "requests_total",
			Help:      "Advice responses by role, source, and category",
		},
		[]string{"role", "source", "category"},
	)

	m.AdviceDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "advice",
			Name:      "duration_seconds",
			Help:      "Advice pipeline duration in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"role", "source"},
	)

	m.BackendInvocations = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "invocations_total",
			Help:      "Model invocations by provider, kind, and outcome",
		},
		[]string{"provider", "kind", "outcome"},
	)

	m.FallbacksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "advice",
			Name:      "fallbacks_total",
			Help:      "Responses served from the content bank by role and failure reason",
		},
		[]string{"role", "reason"},
	)

	m.GateRejectionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "rejections_total",
			Help:      "Premium requests rejected for missing payment by role",
		},
		[]string{"role"},
	)

	m.RegisteredBackends = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "registered",
			Help:      "Backend descriptors loaded at startup by role, tier, and kind",
		},
		[]string{"role", "tier", "kind"},
	)

	return m
}

// Registry возвращает реестр для promhttp.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest записывает метрики одного HTTP-запроса.
func (m *Metrics) RecordHTTPRequest(route, method string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(route, method, statusCodeToLabel(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// SetBackends выставляет gauge по загруженному реестру.
func (m *Metrics) SetBackends(descriptors []advice.BackendDescriptor) {
	for _, d := range descriptors {
		m.RegisteredBackends.WithLabelValues(string(d.Role), d.Tier.String(), string(d.Kind)).Inc()
	}
}

// ObserveAdvice реализует advice.Observer.
func (m *Metrics) ObserveAdvice(_ context.Context, in advice.Input, result advice.Result) {
	role := string(in.Role)
	source := string(result.Source)

	m.AdviceRequestsTotal.WithLabelValues(role, source, string(result.Response.Category)).Inc()
	m.AdviceDuration.WithLabelValues(role, source).Observe(result.Latency.Seconds())

	outcome := "success"
	if result.Failure != nil {
		outcome = string(result.Failure.Reason)
		m.FallbacksTotal.WithLabelValues(role, outcome).Inc()
	}
	m.BackendInvocations.WithLabelValues(result.Backend.Provider, string(result.Backend.Kind), outcome).Inc()
}

// ObserveRejection реализует advice.Observer.
func (m *Metrics) ObserveRejection(_ context.Context, in advice.Input, err error) {
	var gateErr *advice.PaymentRequiredError
	if errors.As(err, &gateErr) {
		m.GateRejectionsTotal.WithLabelValues(string(in.Role)).Inc()
	}
}

func statusCodeToLabel(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
