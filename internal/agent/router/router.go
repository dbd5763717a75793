// Package router classifies a fresh conversation into one of the dialogue agents.
package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/lh-counsel/server/internal/agent/graph/prompts"
	"github.com/lh-counsel/server/internal/agent/model"
	logx "github.com/lh-counsel/server/pkg/logger"
)

// ClarifyMessage is returned under the clarify policy when the label is unrecognised.
const ClarifyMessage = "주택(임대주택 청약) 상담과 대출 상담 중 어떤 상담을 원하시는지 알려주세요."

type Router struct {
	llm           model.Generator
	policy        model.UnknownIntentPolicy
	defaultIntent model.Intent
}

func New(llm model.Generator, cfg model.RouterConfig) *Router {
	policy, def := cfg.Policy()
	return &Router{llm: llm, policy: policy, defaultIntent: def}
}

// Route classifies the query when no intent is set yet. classified reports
// whether a generation call was made during this turn. An intent that is
// already set is never overwritten.
func (r *Router) Route(ctx context.Context, in model.ConversationState) (out model.ConversationState, classified bool, err error) {
	if in.Intent != "" {
		return in, false, nil
	}

	msgs, err := prompts.RenderRouter(ctx, in.Query)
	if err != nil {
		return in, false, err
	}
	resp, err := r.llm.Generate(ctx, msgs)
	if err != nil {
		return in, false, fmt.Errorf("classify intent: %w", err)
	}

	out = in.Clone()
	label := model.Intent(strings.ToLower(strings.TrimSpace(resp.Content)))
	out.Intent = label
	if label.Known() {
		logx.Debug().Str("intent", string(label)).Msg("Intent classified")
		return out, true, nil
	}

	switch {
	case r.defaultIntent != "":
		logx.Warn().Str("label", string(label)).Str("fallback", string(r.defaultIntent)).
			Msg("Unrecognised intent label - routing to fallback agent")
		out.Intent = r.defaultIntent
	case r.policy == model.UnknownIntentClarify:
		logx.Warn().Str("label", string(label)).Msg("Unrecognised intent label - asking user to clarify")
		out.Intent = ""
		out.Result = ClarifyMessage
	default:
		logx.Warn().Str("label", string(label)).Msg("Unrecognised intent label - no agent will answer")
	}
	return out, true, nil
}
