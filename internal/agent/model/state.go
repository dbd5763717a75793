package model

import (
	"slices"

	"github.com/cloudwego/eino/schema"
)

// Intent is the classified conversation topic.
type Intent string

const (
	IntentLoan    Intent = "loan"
	IntentHousing Intent = "housing"
)

// Known reports whether the intent maps to an agent.
func (i Intent) Known() bool {
	return i == IntentLoan || i == IntentHousing
}

// HousingPhase is the explicit state of the housing dialogue.
type HousingPhase string

const (
	HousingUninitialized HousingPhase = ""
	HousingCollecting    HousingPhase = "collecting"
	HousingRecommending  HousingPhase = "recommending"
	HousingSelecting     HousingPhase = "selecting"
	HousingAnswering     HousingPhase = "answering"
)

// LoanPhase is the explicit state of the loan dialogue.
type LoanPhase string

const (
	LoanCollectingAmount LoanPhase = ""
	LoanCollectingTerm   LoanPhase = "collecting_term"
	LoanComparing        LoanPhase = "comparing"
	LoanChatting         LoanPhase = "chatting"
)

// SlotKind selects the parser applied to a slot answer.
type SlotKind string

const (
	SlotText SlotKind = "text"
	SlotInt  SlotKind = "int"
	SlotBool SlotKind = "bool"
)

// SlotValue is a filled slot. Unset slots are absent from SlotValues.
type SlotValue struct {
	Kind SlotKind `json:"kind"`
	Text string   `json:"text,omitempty"`
	Int  int64    `json:"int,omitempty"`
	Bool bool     `json:"bool,omitempty"`
}

// SlotValues maps slot names to filled values.
type SlotValues map[string]SlotValue

func (v SlotValues) Clone() SlotValues {
	if v == nil {
		return nil
	}
	out := make(SlotValues, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// ConversationState is the record threaded through every turn. Handlers never
// mutate a received state in place; they return a derived copy.
type ConversationState struct {
	Query       string          `json:"query,omitempty"`
	Intent      Intent          `json:"intent,omitempty"`
	Result      string          `json:"result,omitempty"`
	Housing     *HousingSession `json:"housing,omitempty"`
	Loan        *LoanSession    `json:"loan,omitempty"`
	Source      *SourceRef      `json:"source,omitempty"`
	CurrentPage int             `json:"current_page,omitempty"`

	// Reenter asks the graph to run the same agent once more within this turn.
	Reenter bool `json:"-"`
}

// Clone returns a deep copy of the state.
func (s ConversationState) Clone() ConversationState {
	out := s
	out.Housing = s.Housing.Clone()
	out.Loan = s.Loan.Clone()
	out.Source = s.Source.Clone()
	return out
}

// HousingSession holds the housing agent's form and recommendation results.
type HousingSession struct {
	Phase       HousingPhase      `json:"phase"`
	History     []*schema.Message `json:"history,omitempty"`
	Slots       SlotValues        `json:"slots"`
	Recommended bool              `json:"recommended"`
	Types       []HousingType     `json:"types,omitempty"`
	Candidates  []Notice          `json:"candidates,omitempty"`
	Selection   *Notice           `json:"selection,omitempty"`
	Misses      int               `json:"misses,omitempty"`
}

func (h *HousingSession) Clone() *HousingSession {
	if h == nil {
		return nil
	}
	out := *h
	out.History = slices.Clone(h.History)
	out.Slots = h.Slots.Clone()
	out.Types = slices.Clone(h.Types)
	out.Candidates = slices.Clone(h.Candidates)
	if h.Selection != nil {
		sel := *h.Selection
		out.Selection = &sel
	}
	return &out
}

// LoanSession holds the loan agent's inputs and chat history.
type LoanSession struct {
	Phase      LoanPhase         `json:"phase"`
	History    []*schema.Message `json:"history,omitempty"`
	Amount     int64             `json:"amount,omitempty"`
	Years      int               `json:"years,omitempty"`
	Table      string            `json:"table,omitempty"`
	TableReady bool              `json:"table_ready"`
	Misses     int               `json:"misses,omitempty"`
}

func (l *LoanSession) Clone() *LoanSession {
	if l == nil {
		return nil
	}
	out := *l
	out.History = slices.Clone(l.History)
	return &out
}

// SourceRef points the caller at the document pages that grounded the last answer.
type SourceRef struct {
	NoticeID string `json:"notice_id"`
	Pages    []int  `json:"pages"`
}

func (r *SourceRef) Clone() *SourceRef {
	if r == nil {
		return nil
	}
	return &SourceRef{NoticeID: r.NoticeID, Pages: slices.Clone(r.Pages)}
}
