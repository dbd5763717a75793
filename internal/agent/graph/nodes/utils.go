package nodes

import (
	"context"

	"github.com/cloudwego/eino/compose"

	"github.com/lh-counsel/server/internal/agent/model"
)

// Graph node keys.
const (
	NodeTurnInput    = "TurnInput"
	NodeIntentRouter = "IntentRouter"
	NodeHousingAgent = "HousingAgent"
	NodeLoanAgent    = "LoanAgent"
	NodeTurnOutput   = "TurnOutput"
)

// DefaultMaxReentries bounds agent self-loop passes per invocation.
const DefaultMaxReentries = 1

// ===== Small helpers to keep handlers simple/readable =====
func normalizeMaxReentries(n int) int {
	if n <= 0 {
		return DefaultMaxReentries
	}
	return n
}

// snapshotAppState copies the graph local state. Outside a graph run it
// returns the zero value.
func snapshotAppState(ctx context.Context) model.AppState {
	var snap model.AppState
	_ = compose.ProcessState(ctx, func(_ context.Context, s *model.AppState) error {
		snap = *s
		return nil
	})
	return snap
}

// addCost accumulates generation spend into the graph local state when present.
func addCost(ctx context.Context, usd float64) float64 {
	var total float64
	_ = compose.ProcessState(ctx, func(_ context.Context, s *model.AppState) error {
		s.TotalCostUSD += usd
		total = s.TotalCostUSD
		return nil
	})
	return total
}
