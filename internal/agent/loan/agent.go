// Package loan runs the loan-product counselling dialogue: amount and term
// intake, a priced comparison table, then open chat grounded in that table.
package loan

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/lh-counsel/server/internal/agent/dialog"
	"github.com/lh-counsel/server/internal/agent/graph/conversations"
	"github.com/lh-counsel/server/internal/agent/graph/prompts"
	"github.com/lh-counsel/server/internal/agent/model"
	"github.com/lh-counsel/server/internal/metrics"
	logx "github.com/lh-counsel/server/pkg/logger"
)

const agentName = "loan"

// MaxYears bounds the accepted loan term (exclusive).
const MaxYears = 100

const (
	msgAmount    = "대출금액을 입력해주세요."
	msgTerm      = "대출기간(년)을 입력해주세요."
	msgReset     = "좋습니다! 새로운 대출 상담을 시작합니다.\n" + msgAmount
	msgExit      = "대출 상담을 종료합니다."
	msgNoProduct = "조건에 맞는 대출 상품이 없습니다. 다른 금액이나 기간으로 시도해 보세요."
	msgRestart   = "처음부터 다시 진행합니다."
	footer       = "👉 새로운 조건으로 검색하려면 'new', 대화를 종료하려면 'exit'를 입력해주세요."
)

type Agent struct {
	pricer    model.LoanPricer
	llm       model.Generator
	history   *conversations.MessagesManager
	maxMisses int
}

func New(pricer model.LoanPricer, llm model.Generator, history *conversations.MessagesManager, cfg model.DialogConfig) *Agent {
	return &Agent{
		pricer:    pricer,
		llm:       llm,
		history:   history,
		maxMisses: cfg.MaxNoResultRepeats,
	}
}

// Handle runs one turn and returns the derived state; in is never modified.
func (a *Agent) Handle(ctx context.Context, in model.ConversationState) (model.ConversationState, error) {
	out := in.Clone()
	out.Result = ""

	if out.Reenter {
		out.Reenter = false
		out.Loan = a.newSession(nil)
		out.Result = msgReset
		metrics.RecordOutcome(agentName, metrics.OutcomePrompted)
		return out, nil
	}

	switch dialog.Classify(out.Query) {
	case dialog.CommandExit:
		metrics.RecordOutcome(agentName, metrics.OutcomeExit)
		return model.ConversationState{Result: msgExit}, nil
	case dialog.CommandReset:
		metrics.RecordOutcome(agentName, metrics.OutcomeReset)
		return model.ConversationState{
			Intent:  out.Intent,
			Result:  msgReset,
			Reenter: true,
		}, nil
	}

	if out.Loan == nil {
		// The first query after classification may already carry the amount.
		out.Loan = a.newSession(nil)
	}

	switch out.Loan.Phase {
	case model.LoanCollectingAmount:
		return a.collectAmount(out), nil
	case model.LoanCollectingTerm:
		return a.collectTerm(ctx, out)
	case model.LoanComparing:
		return a.compare(ctx, out)
	case model.LoanChatting:
		return a.chat(ctx, out)
	default:
		return out, fmt.Errorf("unknown loan phase %q", out.Loan.Phase)
	}
}

func (a *Agent) newSession(history []*schema.Message) *model.LoanSession {
	return &model.LoanSession{
		Phase:   model.LoanCollectingAmount,
		History: a.history.Seed(history, prompts.LoanCounsellor),
	}
}

func (a *Agent) collectAmount(s model.ConversationState) model.ConversationState {
	amount, ok := dialog.ExtractInt(s.Query)
	if !ok || amount <= 0 {
		s.Result = msgAmount
		metrics.RecordOutcome(agentName, metrics.OutcomeInvalid)
		return s
	}
	s.Loan.Amount = amount
	s.Loan.Phase = model.LoanCollectingTerm
	s.Result = msgTerm
	metrics.RecordOutcome(agentName, metrics.OutcomePrompted)
	return s
}

func (a *Agent) collectTerm(ctx context.Context, s model.ConversationState) (model.ConversationState, error) {
	years, ok := dialog.ExtractInt(s.Query)
	if !ok || years <= 0 || years >= MaxYears {
		s.Result = msgTerm
		metrics.RecordOutcome(agentName, metrics.OutcomeInvalid)
		return s, nil
	}
	s.Loan.Years = int(years)
	s.Loan.Phase = model.LoanComparing
	return a.compare(ctx, s)
}

func (a *Agent) compare(ctx context.Context, s model.ConversationState) (model.ConversationState, error) {
	l := s.Loan
	if l.TableReady {
		l.Phase = model.LoanChatting
		return a.chat(ctx, s)
	}

	table, err := a.pricer.ComparisonTable(ctx, l.Amount, l.Years)
	if err != nil {
		logx.Error().Err(err).Int64("amount", l.Amount).Int("years", l.Years).Msg("Loan pricing failed - treating as no product")
		metrics.RecordCollaboratorError("pricing")
		table = ""
	}
	if table == "" {
		return a.miss(s), nil
	}

	tableMsg, err := prompts.RenderLoanTable(ctx, table)
	if err != nil {
		return s, err
	}
	history := a.history.Append(l.History, tableMsg)
	reply, err := a.llm.Generate(ctx, a.history.BuildChatContext(history))
	if err != nil {
		return s, fmt.Errorf("generate loan comparison: %w", err)
	}

	l.History = a.history.Append(history, schema.AssistantMessage(reply.Content, nil))
	l.Table = table
	l.TableReady = true
	l.Misses = 0
	l.Phase = model.LoanChatting
	s.Result = render(reply.Content)
	metrics.RecordOutcome(agentName, metrics.OutcomeRecommended)
	logx.Info().Int64("amount", l.Amount).Int("years", l.Years).Msg("Loan comparison produced")
	return s, nil
}

// miss keeps the agent in Comparing so the same lookup runs next turn.
// With a repeat limit configured, intake restarts once the limit is hit.
func (a *Agent) miss(s model.ConversationState) model.ConversationState {
	l := s.Loan
	l.Misses++
	metrics.RecordOutcome(agentName, metrics.OutcomeNoResult)
	if a.maxMisses > 0 && l.Misses >= a.maxMisses {
		l.Amount, l.Years, l.Misses = 0, 0, 0
		l.Phase = model.LoanCollectingAmount
		s.Result = msgNoProduct + "\n" + msgRestart + "\n" + msgAmount
		metrics.RecordOutcome(agentName, metrics.OutcomeFallback)
		return s
	}
	s.Result = msgNoProduct + "\n" + footer
	return s
}

func (a *Agent) chat(ctx context.Context, s model.ConversationState) (model.ConversationState, error) {
	l := s.Loan
	history := a.history.Append(l.History, schema.UserMessage(s.Query))
	reply, err := a.llm.Generate(ctx, a.history.BuildChatContext(history))
	if err != nil {
		return s, fmt.Errorf("generate loan chat reply: %w", err)
	}
	l.History = a.history.Append(history, schema.AssistantMessage(reply.Content, nil))
	s.Result = render(reply.Content)
	metrics.RecordOutcome(agentName, metrics.OutcomeAnswered)
	return s, nil
}

func render(reply string) string {
	return dialog.ToHTML(reply + "\n\n" + footer)
}
