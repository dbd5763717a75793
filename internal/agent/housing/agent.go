// Package housing runs the rental-housing counselling dialogue: intake form,
// eligibility recommendation, notice selection and grounded Q&A.
package housing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/lh-counsel/server/internal/agent/dialog"
	"github.com/lh-counsel/server/internal/agent/graph/conversations"
	"github.com/lh-counsel/server/internal/agent/graph/prompts"
	"github.com/lh-counsel/server/internal/agent/model"
	"github.com/lh-counsel/server/internal/agent/rag"
	"github.com/lh-counsel/server/internal/metrics"
	logx "github.com/lh-counsel/server/pkg/logger"
)

const agentName = "housing"

type Agent struct {
	eligibility model.EligibilityFinder
	regions     model.RegionResolver
	notices     model.NoticeFinder
	answerer    *rag.Answerer
	history     *conversations.MessagesManager
	maxMisses   int
}

func New(
	eligibility model.EligibilityFinder,
	regions model.RegionResolver,
	notices model.NoticeFinder,
	answerer *rag.Answerer,
	history *conversations.MessagesManager,
	cfg model.DialogConfig,
) *Agent {
	return &Agent{
		eligibility: eligibility,
		regions:     regions,
		notices:     notices,
		answerer:    answerer,
		history:     history,
		maxMisses:   cfg.MaxNoResultRepeats,
	}
}

// Handle runs one turn and returns the derived state; in is never modified.
func (a *Agent) Handle(ctx context.Context, in model.ConversationState) (model.ConversationState, error) {
	out := in.Clone()
	out.Result = ""

	if out.Reenter {
		// Second pass after a reset: start the form without reading the reset text as an answer.
		out.Reenter = false
		return a.initialize(out), nil
	}

	switch dialog.Classify(out.Query) {
	case dialog.CommandExit:
		metrics.RecordOutcome(agentName, metrics.OutcomeExit)
		return model.ConversationState{Result: msgExit}, nil
	case dialog.CommandReset:
		metrics.RecordOutcome(agentName, metrics.OutcomeReset)
		return model.ConversationState{
			Intent:  out.Intent,
			Result:  Schema.First().Prompt,
			Reenter: true,
		}, nil
	}

	if out.Housing == nil {
		return a.initialize(out), nil
	}

	switch out.Housing.Phase {
	case model.HousingCollecting:
		return a.collect(ctx, out), nil
	case model.HousingRecommending:
		return a.recommend(ctx, out), nil
	case model.HousingSelecting:
		return a.selectNotice(out), nil
	case model.HousingAnswering:
		return a.answer(ctx, out)
	default:
		return a.initialize(out), nil
	}
}

func (a *Agent) initialize(s model.ConversationState) model.ConversationState {
	var history []*schema.Message
	if s.Housing != nil {
		history = s.Housing.History
	}
	s.Housing = &model.HousingSession{
		Phase:   model.HousingCollecting,
		History: a.history.Seed(history, prompts.HousingCounsellor),
		Slots:   model.SlotValues{},
	}
	s.Result = Schema.First().Prompt
	metrics.RecordOutcome(agentName, metrics.OutcomePrompted)
	return s
}

func (a *Agent) collect(ctx context.Context, s model.ConversationState) model.ConversationState {
	h := s.Housing
	slots, ok := Schema.FillNext(h.Slots, s.Query)
	h.Slots = slots
	next, missing := Schema.NextUnset(slots)
	if missing {
		if !ok {
			logx.Debug().Str("slot", next.Name).Msg("Slot answer rejected, asking again")
			metrics.RecordOutcome(agentName, metrics.OutcomeInvalid)
		} else {
			metrics.RecordOutcome(agentName, metrics.OutcomePrompted)
		}
		s.Result = next.Prompt
		return s
	}
	h.Phase = model.HousingRecommending
	return a.recommend(ctx, s)
}

func (a *Agent) recommend(ctx context.Context, s model.ConversationState) model.ConversationState {
	h := s.Housing
	if h.Recommended {
		h.Phase = model.HousingSelecting
		return a.selectNotice(s)
	}
	profile := ProfileFromSlots(h.Slots)

	types, err := a.eligibility.FindEligible(ctx, profile)
	if err != nil {
		logx.Error().Err(err).Str("collaborator", "eligibility").Msg("Eligibility lookup failed - treating as no match")
		metrics.RecordCollaboratorError("eligibility")
		types = nil
	}
	if len(types) == 0 {
		return a.miss(s, msgNoHousingType)
	}

	code, err := a.regions.ResolveRegionCode(ctx, profile.Region)
	if err != nil {
		logx.Error().Err(err).Str("region", profile.Region).Msg("Region lookup failed - searching without region")
		metrics.RecordCollaboratorError("region")
		code = ""
	}

	ids := make([]string, 0, len(types))
	for _, t := range types {
		ids = append(ids, t.HouseID)
	}
	notices, err := a.notices.FindOpenNotices(ctx, ids, code)
	if err != nil {
		logx.Error().Err(err).Strs("house_ids", ids).Msg("Notice lookup failed - treating as no open notices")
		metrics.RecordCollaboratorError("notices")
		notices = nil
	}
	if len(notices) == 0 {
		return a.miss(s, msgNoNotice)
	}

	h.Types = types
	h.Candidates = notices
	h.Recommended = true
	h.Misses = 0
	h.Phase = model.HousingSelecting
	s.Result = renderRecommendation(types, notices)
	metrics.RecordOutcome(agentName, metrics.OutcomeRecommended)
	logx.Info().Int("types", len(types)).Int("notices", len(notices)).Str("region_code", code).Msg("Housing recommendation produced")
	return s
}

// miss keeps the agent in Recommending so the same lookup runs next turn.
// With a repeat limit configured, the form restarts once the limit is hit.
func (a *Agent) miss(s model.ConversationState, msg string) model.ConversationState {
	h := s.Housing
	h.Misses++
	metrics.RecordOutcome(agentName, metrics.OutcomeNoResult)
	if a.maxMisses > 0 && h.Misses >= a.maxMisses {
		h.Phase = model.HousingCollecting
		h.Slots = model.SlotValues{}
		h.Misses = 0
		s.Result = msg + "\n" + msgRestart + "\n" + Schema.First().Prompt
		metrics.RecordOutcome(agentName, metrics.OutcomeFallback)
		return s
	}
	s.Result = msg
	return s
}

func (a *Agent) selectNotice(s model.ConversationState) model.ConversationState {
	h := s.Housing
	if dialog.IsChange(s.Query) {
		s.Result = msgReselect
		return s
	}
	n, err := strconv.Atoi(strings.TrimSpace(s.Query))
	if err != nil {
		s.Result = msgNotNumber
		metrics.RecordOutcome(agentName, metrics.OutcomeInvalid)
		return s
	}
	if n < 1 || n > len(h.Candidates) {
		s.Result = msgOutOfRange
		metrics.RecordOutcome(agentName, metrics.OutcomeInvalid)
		return s
	}
	picked := h.Candidates[n-1]
	h.Selection = &picked
	h.Phase = model.HousingAnswering
	s.Result = fmt.Sprintf(msgSelectedFmt, picked.Name)
	metrics.RecordOutcome(agentName, metrics.OutcomeSelected)
	return s
}

func (a *Agent) answer(ctx context.Context, s model.ConversationState) (model.ConversationState, error) {
	h := s.Housing
	if dialog.IsChange(s.Query) || h.Selection == nil {
		h.Selection = nil
		h.Phase = model.HousingSelecting
		s.Result = msgReselect
		return s, nil
	}

	ans, err := a.answerer.Answer(ctx, s.Query, h.Selection.ID)
	if err != nil {
		return s, err
	}
	if !ans.Found {
		s.Result = msgNotFound
		metrics.RecordOutcome(agentName, metrics.OutcomeNotFound)
		return s, nil
	}

	s.Source = ans.Source
	if len(ans.Source.Pages) > 0 {
		s.CurrentPage = ans.Source.Pages[0]
	}
	h.History = a.history.Append(h.History,
		schema.UserMessage(s.Query),
		schema.AssistantMessage(ans.Raw, nil),
	)
	s.Result = ans.HTML
	metrics.RecordOutcome(agentName, metrics.OutcomeAnswered)
	return s, nil
}
