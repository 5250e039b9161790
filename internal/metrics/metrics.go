// Package metrics exposes Prometheus counters for the dashboard gateway.
//
// All methods are safe on a nil *Metrics so components can run without
// instrumentation in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pumpdash"

type Metrics struct {
	registry *prometheus.Registry

	guardDecisions *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	logins         *prometheus.CounterVec
	upstreamCalls  *prometheus.CounterVec
	activeContexts prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_decisions_total",
			Help:      "Navigation guard decisions by outcome and reason.",
		}, []string{"outcome", "reason"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications added by kind.",
		}, []string{"kind"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		upstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_calls_total",
			Help:      "Calls to the upstream API by method and outcome.",
		}, []string{"method", "outcome"}),
		activeContexts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "page_contexts_active",
			Help:      "Live page-session contexts.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.guardDecisions,
		m.notifications,
		m.logins,
		m.upstreamCalls,
		m.activeContexts,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) GuardDecision(outcome, reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "none"
	}
	m.guardDecisions.WithLabelValues(outcome, reason).Inc()
}

func (m *Metrics) NotificationAdded(kind string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind).Inc()
}

func (m *Metrics) Login(ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) UpstreamCall(method string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.upstreamCalls.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) SetActiveContexts(n int) {
	if m == nil {
		return
	}
	m.activeContexts.Set(float64(n))
}
