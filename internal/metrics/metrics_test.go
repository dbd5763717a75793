package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeIntentLabel(t *testing.T) {
	tests := map[string]string{
		"housing":  "housing",
		" LOAN ":   "loan",
		"":         "none",
		"weather":  "unknown",
		"housing?": "unknown",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeIntentLabel(in), in)
	}
}

func TestRecordTurnAndOutcome(t *testing.T) {
	before := testutil.ToFloat64(turnsTotal.WithLabelValues("housing"))
	RecordTurn("Housing")
	assert.Equal(t, before+1, testutil.ToFloat64(turnsTotal.WithLabelValues("housing")))

	before = testutil.ToFloat64(agentOutcomesTotal.WithLabelValues("loan", OutcomeNoResult))
	RecordOutcome("loan", OutcomeNoResult)
	assert.Equal(t, before+1, testutil.ToFloat64(agentOutcomesTotal.WithLabelValues("loan", OutcomeNoResult)))
}

func TestGenerationMetrics(t *testing.T) {
	ObserveGeneration("test-model", 150*time.Millisecond, nil)
	ObserveGeneration("test-model", time.Second, errors.New("boom"))
	assert.Equal(t, 2, testutil.CollectAndCount(generationDuration, "counsel_generation_duration_seconds"))

	before := testutil.ToFloat64(generationCostUSD.WithLabelValues("test-model"))
	AddGenerationCost("test-model", 0)
	AddGenerationCost("test-model", 0.5)
	assert.InDelta(t, before+0.5, testutil.ToFloat64(generationCostUSD.WithLabelValues("test-model")), 1e-9)
}
