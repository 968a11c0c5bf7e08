// Package metrics exposes Prometheus counters for the intake bot.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the bot's collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	events      *prometheus.CounterVec // type
	duplicates  prometheus.Counter
	paused      prometheus.Counter
	transitions *prometheus.CounterVec // from, to
	quotes      *prometheus.CounterVec // status
	outcomes    *prometheus.CounterVec // target, status
	turnErrors  prometheus.Counter
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agrobot_inbound_events_total",
			Help: "Inbound WhatsApp events accepted for processing",
		}, []string{"type"}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agrobot_duplicate_events_total",
			Help: "Inbound events dropped as redeliveries",
		}),
		paused: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agrobot_paused_turns_total",
			Help: "Turns short-circuited because a human owns the conversation",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agrobot_stage_transitions_total",
			Help: "Conversation stage changes",
		}, []string{"from", "to"}),
		quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agrobot_quotes_total",
			Help: "Quote documents generated and delivered",
		}, []string{"status"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agrobot_collaborator_calls_total",
			Help: "Calls to external collaborators by result",
		}, []string{"target", "status"}),
		turnErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agrobot_turn_errors_total",
			Help: "Turns aborted by an unexpected error",
		}),
	}
	reg.MustRegister(m.events, m.duplicates, m.paused, m.transitions, m.quotes, m.outcomes, m.turnErrors)
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordEvent(eventType string) {
	if m != nil {
		m.events.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) RecordDuplicate() {
	if m != nil {
		m.duplicates.Inc()
	}
}

func (m *Metrics) RecordPaused() {
	if m != nil {
		m.paused.Inc()
	}
}

func (m *Metrics) RecordTransition(from, to string) {
	if m != nil && from != to {
		m.transitions.WithLabelValues(from, to).Inc()
	}
}

func (m *Metrics) RecordQuote(ok bool) {
	if m != nil {
		m.quotes.WithLabelValues(status(ok)).Inc()
	}
}

func (m *Metrics) RecordOutcome(target string, ok bool) {
	if m != nil {
		m.outcomes.WithLabelValues(target, status(ok)).Inc()
	}
}

func (m *Metrics) RecordTurnError() {
	if m != nil {
		m.turnErrors.Inc()
	}
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
