// Package observability holds the Prometheus metrics the API records.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Auth event labels
const (
	EventRegister       = "register"
	EventRegisterFailed = "register_failed"
	EventLoginSucceeded = "login_succeeded"
	EventLoginFailed    = "login_failed"
	EventLogout         = "logout"
	EventGateRejected   = "gate_rejected"
)

// Metrics contains the custom wye metrics and the registry that serves them
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	AuthEventsTotal *prometheus.CounterVec
	RoomSessions    prometheus.Counter
}

// NewMetrics creates a private registry with Go and process collectors plus the wye metrics
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wye_graphql_requests_total",
				Help: "Total number of GraphQL requests by surface and HTTP status",
			},
			[]string{"surface", "status"},
		),
		AuthEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wye_auth_events_total",
				Help: "Total number of authentication events by kind",
			},
			[]string{"event"},
		),
		RoomSessions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "wye_room_sessions_created_total",
				Help: "Total number of room sessions recorded",
			},
		),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestsTotal,
		m.AuthEventsTotal,
		m.RoomSessions,
	)
	return m
}

// AuthEvent counts one authentication event
func (m *Metrics) AuthEvent(event string) {
	m.AuthEventsTotal.WithLabelValues(event).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
