package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/lh-counsel/server/internal/agent/model"
	"github.com/lh-counsel/server/internal/metrics"
	logx "github.com/lh-counsel/server/pkg/logger"
)

// IntentRouter classifies a conversation that has no intent yet.
type IntentRouter interface {
	Route(ctx context.Context, in model.ConversationState) (model.ConversationState, bool, error)
}

// DialogueAgent runs one turn of a domain dialogue.
type DialogueAgent interface {
	Handle(ctx context.Context, in model.ConversationState) (model.ConversationState, error)
}

// NewTurnInputPreHandler resets the per-invocation bookkeeping.
func NewTurnInputPreHandler() func(context.Context, model.TurnRequest, *model.AppState) (model.TurnRequest, error) {
	return func(ctx context.Context, in model.TurnRequest, s *model.AppState) (model.TurnRequest, error) {
		s.ConversationID = in.ConversationID
		s.Classified = false
		s.Reentries = 0
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewTurnInputNode places the turn's query into a copy of the caller's state.
func NewTurnInputNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.TurnRequest) (model.ConversationState, error) {
		s := in.State.Clone()
		s.Query = in.Query
		s.Result = ""
		s.Reenter = false
		return s, nil
	})
}

// NewIntentRouterNode classifies fresh conversations and records whether it did.
func NewIntentRouterNode(router IntentRouter) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.ConversationState) (model.ConversationState, error) {
		out, classified, err := router.Route(ctx, in)
		if err != nil {
			logx.Error().Err(err).Str("node", NodeIntentRouter).Msg("Intent classification failed")
			return in, err
		}
		if classified {
			if err := compose.ProcessState(ctx, func(_ context.Context, s *model.AppState) error {
				s.Classified = true
				return nil
			}); err != nil {
				return out, fmt.Errorf("failed to access state: %w", err)
			}
		}
		return out, nil
	})
}

// NewIntentCondition picks the agent for the routed state. A turn that just
// classified the intent ends unless dispatchOnClassify is set; an intent with
// no agent ends the turn without a response.
func NewIntentCondition(dispatchOnClassify bool) func(context.Context, model.ConversationState) (string, error) {
	return func(ctx context.Context, in model.ConversationState) (string, error) {
		st := snapshotAppState(ctx)
		if st.Classified && !dispatchOnClassify {
			logx.Debug().Str("conversation_id", st.ConversationID).Str("intent", string(in.Intent)).
				Msg("Intent classified - returning to caller")
			return NodeTurnOutput, nil
		}
		switch in.Intent {
		case model.IntentHousing:
			return NodeHousingAgent, nil
		case model.IntentLoan:
			return NodeLoanAgent, nil
		default:
			if in.Intent != "" {
				logx.Warn().Str("conversation_id", st.ConversationID).Str("intent", string(in.Intent)).
					Msg("No agent for intent - ending turn")
			}
			return NodeTurnOutput, nil
		}
	}
}

// NewAgentNode adapts a dialogue agent to a graph node.
func NewAgentNode(agent DialogueAgent) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.ConversationState) (model.ConversationState, error) {
		return agent.Handle(ctx, in)
	})
}

// NewReentryCondition loops back into self while the agent asks for another
// pass, up to maxReentries per invocation.
func NewReentryCondition(self string, maxReentries int) func(context.Context, model.ConversationState) (string, error) {
	maxReentries = normalizeMaxReentries(maxReentries)
	return func(ctx context.Context, in model.ConversationState) (string, error) {
		if !in.Reenter {
			return NodeTurnOutput, nil
		}
		loop := false
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.AppState) error {
			if s.Reentries < maxReentries {
				s.Reentries++
				loop = true
			}
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("failed to access state: %w", err)
		}
		if !loop {
			logx.Warn().Str("node", self).Int("max_reentries", maxReentries).Msg("Re-entry limit reached - ending turn")
			return NodeTurnOutput, nil
		}
		logx.Debug().Str("node", self).Msg("Agent requested re-entry")
		return self, nil
	}
}

// NewTurnOutputNode packages the final state for the caller.
func NewTurnOutputNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.ConversationState) (model.TurnResponse, error) {
		out := in.Clone()
		out.Reenter = false
		return model.TurnResponse{Result: out.Result, State: out}, nil
	})
}

// NewTurnOutputPostHandler logs the turn summary and counts it.
func NewTurnOutputPostHandler() func(context.Context, model.TurnResponse, *model.AppState) (model.TurnResponse, error) {
	return func(ctx context.Context, out model.TurnResponse, s *model.AppState) (model.TurnResponse, error) {
		metrics.RecordTurn(string(out.State.Intent))
		logx.Info().
			Str("conversation_id", s.ConversationID).
			Str("intent", string(out.State.Intent)).
			Bool("classified", s.Classified).
			Int("reentries", s.Reentries).
			Float64("total_cost_usd", s.TotalCostUSD).
			Msg("Turn completed")
		return out, nil
	}
}
