// Package metrics exposes the bot's prometheus collectors.
package metrics

import (
	"net/http"

	"vibebot/backend/internal/music"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	Sessions        prometheus.Gauge
	CommandsTotal   *prometheus.CounterVec
	NodeEventsTotal *prometheus.CounterVec
	SurfaceUpdates  *prometheus.CounterVec
	AutoplayTotal   *prometheus.CounterVec
	IdleDisconnects prometheus.Counter
}

var _ music.Observer = (*Metrics)(nil)

// New registers every collector plus the Go and process collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Sessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "vibebot_sessions_active",
				Help: "Number of guild playback sessions",
			},
		),
		CommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vibebot_commands_total",
				Help: "Total number of handled commands, buttons and chat requests",
			},
			[]string{"command", "status"},
		),
		NodeEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vibebot_node_events_total",
				Help: "Total number of streaming node events",
			},
			[]string{"type"},
		),
		SurfaceUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vibebot_surface_updates_total",
				Help: "Total number of now-playing message writes",
			},
			[]string{"kind", "status"},
		),
		AutoplayTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vibebot_autoplay_total",
				Help: "Total number of autoplay attempts by result",
			},
			[]string{"result"},
		),
		IdleDisconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vibebot_idle_disconnects_total",
				Help: "Total number of idle auto-disconnects",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Sessions,
		m.CommandsTotal,
		m.NodeEventsTotal,
		m.SurfaceUpdates,
		m.AutoplayTotal,
		m.IdleDisconnects,
	)
	return m
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the private registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) SessionsActive(n int) {
	m.Sessions.Set(float64(n))
}

func (m *Metrics) NodeEvent(kind string) {
	m.NodeEventsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) Autoplay(result string) {
	m.AutoplayTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IdleDisconnect() {
	m.IdleDisconnects.Inc()
}

// RecordCommand counts one handled user action
func (m *Metrics) RecordCommand(command, status string) {
	m.CommandsTotal.WithLabelValues(command, status).Inc()
}

// RecordSurfaceUpdate counts one now-playing write
func (m *Metrics) RecordSurfaceUpdate(kind, status string) {
	m.SurfaceUpdates.WithLabelValues(kind, status).Inc()
}
