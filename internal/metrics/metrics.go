// Package metrics exposes the counselling service's prometheus collectors.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Agent outcomes.
const (
	OutcomePrompted    = "prompted"
	OutcomeRecommended = "recommended"
	OutcomeNoResult    = "no_result"
	OutcomeSelected    = "selected"
	OutcomeInvalid     = "invalid_input"
	OutcomeAnswered    = "answered"
	OutcomeNotFound    = "not_found"
	OutcomeReset       = "reset"
	OutcomeExit        = "exit"
	OutcomeFallback    = "fallback"
)

var (
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "counsel_turns_total",
		Help: "Conversation turns handled, by intent after the turn",
	}, []string{"intent"}) // intent=housing|loan|unknown|none

	agentOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "counsel_agent_outcomes_total",
		Help: "Agent turn outcomes by agent and outcome",
	}, []string{"agent", "outcome"})

	generationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "counsel_generation_duration_seconds",
		Help:    "Latency of language model calls",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
	}, []string{"model", "status"}) // status=ok|error

	generationCostUSD = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "counsel_generation_cost_usd_total",
		Help: "Estimated language model spend in USD",
	}, []string{"model"})

	collaboratorErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "counsel_collaborator_errors_total",
		Help: "Collaborator failures converted to empty results",
	}, []string{"collaborator"}) // collaborator=eligibility|region|notices|pricing|retrieval
)

// RecordTurn counts one completed graph invocation.
func RecordTurn(intent string) {
	turnsTotal.WithLabelValues(normalizeIntentLabel(intent)).Inc()
}

// RecordOutcome counts one agent outcome.
func RecordOutcome(agent, outcome string) {
	agentOutcomesTotal.WithLabelValues(agent, outcome).Inc()
}

// ObserveGeneration records the latency of one model call.
func ObserveGeneration(model string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	generationDuration.WithLabelValues(model, status).Observe(d.Seconds())
}

func AddGenerationCost(model string, usd float64) {
	if usd <= 0 {
		return
	}
	generationCostUSD.WithLabelValues(model).Add(usd)
}

func RecordCollaboratorError(collaborator string) {
	collaboratorErrorsTotal.WithLabelValues(collaborator).Inc()
}

func normalizeIntentLabel(intent string) string {
	switch v := strings.ToLower(strings.TrimSpace(intent)); v {
	case "housing", "loan":
		return v
	case "":
		return "none"
	default:
		return "unknown"
	}
}
