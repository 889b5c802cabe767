// Package metrics provides Prometheus metrics for the Vamo backend.
// They double as the analytics channel: chat turns, rewards and offers are
// counted here instead of being shipped to an external analytics service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the backend.
type Metrics struct {
	ChatTurnsTotal     *prometheus.CounterVec
	RewardsTotal       *prometheus.CounterVec
	PineapplesGranted  prometheus.Counter
	AIFailuresTotal    *prometheus.CounterVec
	SummariesTotal     prometheus.Counter
	OffersTotal        *prometheus.CounterVec
	ProgressDeltaTotal prometheus.Counter

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		ChatTurnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vamo_chat_turns_total",
				Help: "Total chat turns by extracted intent and outcome (parsed or fallback).",
			},
			[]string{"intent", "outcome"},
		),
		RewardsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vamo_rewards_total",
				Help: "Total reward awards by event type and result (granted, duplicate, rate_limited).",
			},
			[]string{"event_type", "result"},
		),
		PineapplesGranted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vamo_pineapples_granted_total",
				Help: "Total pineapples credited across all users.",
			},
		),
		AIFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vamo_ai_failures_total",
				Help: "Total AI call or parse failures by pipeline (chat, summary, offer).",
			},
			[]string{"pipeline"},
		),
		SummariesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vamo_chat_summaries_total",
				Help: "Total chat summary compactions.",
			},
		),
		OffersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vamo_offers_total",
				Help: "Total valuation offer requests by result (generated, failed).",
			},
			[]string{"result"},
		),
		ProgressDeltaTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vamo_progress_delta_total",
				Help: "Sum of progress deltas applied to projects.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.ChatTurnsTotal)
	reg.MustRegister(m.RewardsTotal)
	reg.MustRegister(m.PineapplesGranted)
	reg.MustRegister(m.AIFailuresTotal)
	reg.MustRegister(m.SummariesTotal)
	reg.MustRegister(m.OffersTotal)
	reg.MustRegister(m.ProgressDeltaTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
