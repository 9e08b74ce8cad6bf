// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "taskboard"

// Auth decision outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeUnauthorized = "unauthorized"
	OutcomeForbidden    = "forbidden"
)

type Metrics struct {
	registry *prometheus.Registry

	AuthDecisions *prometheus.CounterVec
	Logins        *prometheus.CounterVec
	TaskMutations *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
}

// New builds a registry with process and Go runtime collectors plus the
// taskboard collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		AuthDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_decisions_total",
			Help:      "Guard decisions by outcome.",
		}, []string{"outcome"}),
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		TaskMutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_mutations_total",
			Help:      "Task mutations by operation and result.",
		}, []string{"op", "result"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
