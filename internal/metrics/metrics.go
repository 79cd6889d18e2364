// Package metrics exposes prometheus instrumentation for the polling session.
//
// A nil *Metrics is valid and records nothing, so callers never need to guard.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "spotbar"

type Metrics struct {
	registry *prometheus.Registry

	PollsTotal    *prometheus.CounterVec
	PollDuration  *prometheus.HistogramVec
	AuthTotal     *prometheus.CounterVec
	EmitsTotal    *prometheus.CounterVec
	ForcePolls    *prometheus.CounterVec
	SidebarActive prometheus.Gauge
}

// New builds the collectors on a private registry along with the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PollsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "polls_total",
				Help:      "Total number of now-playing polls by classification",
			},
			[]string{"result"},
		),
		PollDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "poll_duration_seconds",
				Help:      "Time spent waiting on the currently-playing endpoint",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		AuthTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_attempts_total",
				Help:      "Total number of authorization attempts by outcome",
			},
			[]string{"outcome"},
		),
		EmitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ui_updates_total",
				Help:      "Total number of state updates delivered to the presenter",
			},
			[]string{"state"},
		),
		ForcePolls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "force_polls_total",
				Help:      "Force-poll requests by disposition",
			},
			[]string{"disposition"},
		),
		SidebarActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "presenter_attached",
				Help:      "1 while a presenter is attached to the session",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.PollsTotal,
		m.PollDuration,
		m.AuthTotal,
		m.EmitsTotal,
		m.ForcePolls,
		m.SidebarActive,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObservePoll(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.PollsTotal.WithLabelValues(result).Inc()
	m.PollDuration.WithLabelValues(result).Observe(took.Seconds())
}

func (m *Metrics) ObserveAuth(outcome string) {
	if m == nil {
		return
	}
	m.AuthTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveEmit(state string) {
	if m == nil {
		return
	}
	m.EmitsTotal.WithLabelValues(state).Inc()
}

func (m *Metrics) ObserveForcePoll(disposition string) {
	if m == nil {
		return
	}
	m.ForcePolls.WithLabelValues(disposition).Inc()
}

func (m *Metrics) SetAttached(attached bool) {
	if m == nil {
		return
	}
	if attached {
		m.SidebarActive.Set(1)
	} else {
		m.SidebarActive.Set(0)
	}
}
