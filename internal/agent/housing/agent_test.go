package housing

import (
	"context"
	"errors"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lh-counsel/server/internal/agent/graph/conversations"
	"github.com/lh-counsel/server/internal/agent/model"
	"github.com/lh-counsel/server/internal/agent/rag"
)

type fakeEligibility struct {
	types   []model.HousingType
	err     error
	calls   int
	profile model.HousingProfile
}

func (f *fakeEligibility) FindEligible(_ context.Context, p model.HousingProfile) ([]model.HousingType, error) {
	f.calls++
	f.profile = p
	return f.types, f.err
}

type fakeRegions struct {
	code string
	err  error
}

func (f fakeRegions) ResolveRegionCode(context.Context, string) (string, error) {
	return f.code, f.err
}

type fakeNotices struct {
	notices  []model.Notice
	err      error
	gotIDs   []string
	gotRegio string
}

func (f *fakeNotices) FindOpenNotices(_ context.Context, ids []string, region string) ([]model.Notice, error) {
	f.gotIDs, f.gotRegio = ids, region
	return f.notices, f.err
}

type fakeRetriever struct {
	passages []model.Passage
	scope    string
}

func (f *fakeRetriever) Retrieve(_ context.Context, _, noticeID string, _ int) ([]model.Passage, error) {
	f.scope = noticeID
	return f.passages, nil
}

type fakeLLM struct {
	reply string
	err   error
}

func (f fakeLLM) Generate(context.Context, []*schema.Message, ...einomodel.Option) (*schema.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

type fixture struct {
	elig      *fakeEligibility
	notices   *fakeNotices
	retriever *fakeRetriever
	agent     *Agent
}

func newFixture(maxMisses int) *fixture {
	f := &fixture{
		elig: &fakeEligibility{types: []model.HousingType{
			{HouseID: "07", Name: "국민임대", SupplyType: "일반공급"},
			{HouseID: "08", Name: "행복주택", SupplyType: "우선공급"},
		}},
		notices: &fakeNotices{notices: []model.Notice{
			{ID: "PAN-1", Name: "서울 국민임대 입주자 모집"},
			{ID: "PAN-2", Name: "서울 행복주택 입주자 모집"},
		}},
		retriever: &fakeRetriever{},
	}
	answerer := rag.NewAnswerer(f.retriever, fakeLLM{reply: "소득 기준은 **100%** 입니다."}, model.RAGConfig{TopK: 1})
	f.agent = New(f.elig, fakeRegions{code: "11"}, f.notices, answerer,
		conversations.NewMessagesManager(model.ConversationConfig{}), model.DialogConfig{MaxNoResultRepeats: maxMisses})
	return f
}

var answers = []string{"일반", "3,000,000원", "3", "예", "no", "서울", "200000000", "0"}

func turn(t *testing.T, a *Agent, s model.ConversationState, query string) model.ConversationState {
	t.Helper()
	s.Query = query
	out, err := a.Handle(context.Background(), s)
	require.NoError(t, err)
	return out
}

// fillForm runs the first-entry turn plus one turn per slot answer.
func fillForm(t *testing.T, a *Agent) model.ConversationState {
	t.Helper()
	s := turn(t, a, model.ConversationState{Intent: model.IntentHousing}, "집 구하고 싶어요")
	for _, ans := range answers {
		s = turn(t, a, s, ans)
	}
	return s
}

func TestFirstEntryAsksFirstSlot(t *testing.T) {
	f := newFixture(0)
	s := turn(t, f.agent, model.ConversationState{Intent: model.IntentHousing}, "임대주택 알려줘")

	assert.Equal(t, Schema.First().Prompt, s.Result)
	require.NotNil(t, s.Housing)
	assert.Equal(t, model.HousingCollecting, s.Housing.Phase)
	assert.Empty(t, s.Housing.Slots)
	require.Len(t, s.Housing.History, 1)
	assert.Equal(t, schema.System, s.Housing.History[0].Role)
}

func TestSlotsFilledInDeclaredOrder(t *testing.T) {
	f := newFixture(0)
	s := turn(t, f.agent, model.ConversationState{Intent: model.IntentHousing}, "시작")

	for i, ans := range answers[:len(answers)-1] {
		s = turn(t, f.agent, s, ans)
		assert.Equal(t, Schema[i+1].Prompt, s.Result, "after answering %s", Schema[i].Name)
		assert.Len(t, s.Housing.Slots, i+1)
		assert.Zero(t, f.elig.calls)
	}

	s = turn(t, f.agent, s, answers[len(answers)-1])
	assert.Equal(t, 1, f.elig.calls, "last answer falls through to recommendation in the same turn")
	assert.Equal(t, model.HousingProfile{
		Tier: "일반", Income: 3000000, HouseholdSize: 3, Homeless: true, Householder: false,
		Region: "서울", Assets: 200000000, CarValue: 0,
	}, f.elig.profile)
	assert.Equal(t, []string{"07", "08"}, f.notices.gotIDs)
	assert.Equal(t, "11", f.notices.gotRegio)
}

func TestRejectedIntegerKeepsSlotOpen(t *testing.T) {
	f := newFixture(0)
	s := turn(t, f.agent, model.ConversationState{Intent: model.IntentHousing}, "시작")
	s = turn(t, f.agent, s, "일반")
	s = turn(t, f.agent, s, "잘 모르겠어요")

	assert.Equal(t, Schema[1].Prompt, s.Result)
	assert.NotContains(t, s.Housing.Slots, SlotIncome)
}

func TestRecommendationRendering(t *testing.T) {
	f := newFixture(0)
	s := fillForm(t, f.agent)

	assert.Equal(t, "✅ 신청 가능한 임대주택 유형:\n"+
		"<ul><li>국민임대 (일반공급)</li><li>행복주택 (우선공급)</li></ul>\n\n"+
		"✅ 진행 중인 추천 공고:\n"+
		"<ol><li>서울 국민임대 입주자 모집</li><li>서울 행복주택 입주자 모집</li></ol>\n\n"+
		"원하는 공고 번호를 입력해주세요.\n", s.Result)
	assert.True(t, s.Housing.Recommended)
	assert.Equal(t, model.HousingSelecting, s.Housing.Phase)
	assert.Len(t, s.Housing.Candidates, 2)
}

func TestRecommendedNeverRecomputes(t *testing.T) {
	f := newFixture(0)
	s := fillForm(t, f.agent)
	require.Equal(t, 1, f.elig.calls)

	s = turn(t, f.agent, s, "2")
	assert.Equal(t, 1, f.elig.calls, "a number after recommendation is a selection")
	assert.Equal(t, "✅ 선택한 공고: 서울 행복주택 입주자 모집\n이제 궁금한 점을 입력해주세요!", s.Result)

	// Even a state forced back to Recommending skips the lookup once recommended.
	s.Housing.Phase = model.HousingRecommending
	s.Housing.Selection = nil
	s = turn(t, f.agent, s, "1")
	assert.Equal(t, 1, f.elig.calls)
	require.NotNil(t, s.Housing.Selection)
	assert.Equal(t, "PAN-1", s.Housing.Selection.ID)
}

func TestInvalidSelectionLeavesStateUnchanged(t *testing.T) {
	f := newFixture(0)
	s := fillForm(t, f.agent)
	before := s.Housing.Clone()

	for _, tc := range []struct{ query, want string }{
		{"첫번째", msgNotNumber},
		{"0", msgOutOfRange},
		{"3", msgOutOfRange},
		{"-1", msgOutOfRange},
		{"change", msgReselect},
	} {
		s = turn(t, f.agent, s, tc.query)
		assert.Equal(t, tc.want, s.Result, tc.query)
		assert.Nil(t, s.Housing.Selection)
		assert.Equal(t, before, s.Housing)
	}
}

func TestGroundedAnswerAndChange(t *testing.T) {
	f := newFixture(0)
	f.retriever.passages = []model.Passage{{Text: "소득 기준 100%", Page: 12, NoticeID: "PAN-1"}}
	s := fillForm(t, f.agent)
	s = turn(t, f.agent, s, "1")

	s = turn(t, f.agent, s, "소득 기준이 어떻게 돼요?")
	assert.Equal(t, "PAN-1", f.retriever.scope)
	assert.Equal(t, "<p>소득 기준은 <strong>100%</strong> 입니다.</p>", s.Result)
	require.NotNil(t, s.Source)
	assert.Equal(t, []int{12}, s.Source.Pages)
	assert.Equal(t, 12, s.CurrentPage)
	assert.Len(t, s.Housing.History, 3)

	f.retriever.passages = nil
	s = turn(t, f.agent, s, "주차는요?")
	assert.Equal(t, msgNotFound, s.Result)
	assert.Equal(t, model.HousingAnswering, s.Housing.Phase)

	s = turn(t, f.agent, s, "공고 Change 할래요")
	assert.Equal(t, msgReselect, s.Result)
	assert.Nil(t, s.Housing.Selection)
	assert.Equal(t, model.HousingSelecting, s.Housing.Phase)
	assert.True(t, s.Housing.Recommended)
	assert.Len(t, s.Housing.Candidates, 2)
}

func TestGenerationErrorPropagates(t *testing.T) {
	f := newFixture(0)
	boom := errors.New("quota exceeded")
	f.retriever.passages = []model.Passage{{Text: "x", Page: 1, NoticeID: "PAN-1"}}
	f.agent.answerer = rag.NewAnswerer(f.retriever, fakeLLM{err: boom}, model.RAGConfig{})
	s := fillForm(t, f.agent)
	s = turn(t, f.agent, s, "1")

	s.Query = "질문"
	_, err := f.agent.Handle(context.Background(), s)
	require.ErrorIs(t, err, boom)
}

func TestEmptyEligibilityIdleLoop(t *testing.T) {
	f := newFixture(0)
	f.elig.types = nil
	s := fillForm(t, f.agent)
	assert.Equal(t, msgNoHousingType, s.Result)
	assert.False(t, s.Housing.Recommended)

	for i := 0; i < 3; i++ {
		s = turn(t, f.agent, s, "1")
		assert.Equal(t, msgNoHousingType, s.Result)
		assert.False(t, s.Housing.Recommended)
		assert.Equal(t, model.HousingRecommending, s.Housing.Phase)
	}
	assert.Equal(t, 4, f.elig.calls)
}

func TestCollaboratorErrorsBecomeNoResult(t *testing.T) {
	f := newFixture(0)
	f.elig.err = errors.New("database is locked")
	s := fillForm(t, f.agent)
	assert.Equal(t, msgNoHousingType, s.Result)

	f = newFixture(0)
	f.notices.err = errors.New("503 Service Unavailable")
	s = fillForm(t, f.agent)
	assert.Equal(t, msgNoNotice, s.Result)
	assert.False(t, s.Housing.Recommended)
}

func TestNoResultFallbackRestartsForm(t *testing.T) {
	f := newFixture(2)
	f.notices.notices = nil
	s := fillForm(t, f.agent)
	assert.Equal(t, msgNoNotice, s.Result)
	assert.Equal(t, 1, s.Housing.Misses)

	s = turn(t, f.agent, s, "아무거나")
	assert.Equal(t, msgNoNotice+"\n"+msgRestart+"\n"+Schema.First().Prompt, s.Result)
	assert.Equal(t, model.HousingCollecting, s.Housing.Phase)
	assert.Empty(t, s.Housing.Slots)
	assert.Zero(t, s.Housing.Misses)

	s = turn(t, f.agent, s, "신혼부부")
	assert.Equal(t, Schema[1].Prompt, s.Result)
}

func TestResetKeepsOnlyIntent(t *testing.T) {
	f := newFixture(0)
	f.retriever.passages = []model.Passage{{Text: "x", Page: 3, NoticeID: "PAN-1"}}
	s := fillForm(t, f.agent)
	s = turn(t, f.agent, s, "1")
	s = turn(t, f.agent, s, "질문")
	require.NotNil(t, s.Source)

	out := turn(t, f.agent, s, "다른 조건으로 볼래요")
	assert.Equal(t, model.ConversationState{
		Intent:  model.IntentHousing,
		Result:  Schema.First().Prompt,
		Reenter: true,
	}, out)

	// The re-entry pass starts a fresh form without consuming the reset text.
	out, err := f.agent.Handle(context.Background(), out)
	require.NoError(t, err)
	assert.False(t, out.Reenter)
	assert.Equal(t, Schema.First().Prompt, out.Result)
	assert.Empty(t, out.Housing.Slots)
	assert.Equal(t, model.HousingCollecting, out.Housing.Phase)
}

func TestResetWithoutPriorState(t *testing.T) {
	f := newFixture(0)
	out := turn(t, f.agent, model.ConversationState{Intent: model.IntentHousing}, "new")
	assert.Equal(t, Schema.First().Prompt, out.Result)
	assert.Nil(t, out.Housing)
}

func TestExitClearsEverything(t *testing.T) {
	f := newFixture(0)
	s := fillForm(t, f.agent)

	out := turn(t, f.agent, s, "  EXIT ")
	assert.Equal(t, model.ConversationState{Result: msgExit}, out)
}

func TestHandleDoesNotMutateInput(t *testing.T) {
	f := newFixture(0)
	s := fillForm(t, f.agent)
	snapshot := s.Clone()

	s.Query = "2"
	_, err := f.agent.Handle(context.Background(), s)
	require.NoError(t, err)
	s.Query = snapshot.Query
	assert.Equal(t, snapshot, s)
}
