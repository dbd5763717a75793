package rag

import (
	"context"
	"errors"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lh-counsel/server/internal/agent/model"
)

type fakeRetriever struct {
	passages []model.Passage
	err      error
	gotQuery string
	gotScope string
	gotTopK  int
}

func (f *fakeRetriever) Retrieve(_ context.Context, query, noticeID string, topK int) ([]model.Passage, error) {
	f.gotQuery, f.gotScope, f.gotTopK = query, noticeID, topK
	return f.passages, f.err
}

type fakeLLM struct {
	reply string
	err   error
	calls int
	last  []*schema.Message
}

func (f *fakeLLM) Generate(_ context.Context, in []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	f.calls++
	f.last = in
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func TestAnswerGroundsOnPassages(t *testing.T) {
	ret := &fakeRetriever{passages: []model.Passage{
		{Text: "  신청자격은 무주택 세대구성원입니다. ", Page: 4, NoticeID: "PAN-1"},
		{Text: "임대기간은 2년입니다.", Page: 7, NoticeID: "PAN-2"},
	}}
	llm := &fakeLLM{reply: "**무주택** 세대구성원이면 신청할 수 있어요."}

	ans, err := NewAnswerer(ret, llm, model.RAGConfig{TopK: 2}).Answer(context.Background(), "누가 신청하나요?", "PAN-1")
	require.NoError(t, err)

	assert.Equal(t, "누가 신청하나요?", ret.gotQuery)
	assert.Equal(t, "PAN-1", ret.gotScope)
	assert.Equal(t, 2, ret.gotTopK)

	assert.True(t, ans.Found)
	assert.Equal(t, "<p><strong>무주택</strong> 세대구성원이면 신청할 수 있어요.</p>", ans.HTML)
	require.NotNil(t, ans.Source)
	assert.Equal(t, "PAN-1", ans.Source.NoticeID, "first passage decides the source document")
	assert.Equal(t, []int{4, 7}, ans.Source.Pages)

	require.Equal(t, 1, llm.calls)
	prompt := llm.last[0].Content
	assert.Contains(t, prompt, "- 신청자격은 무주택 세대구성원입니다.\n- 임대기간은 2년입니다.")
	assert.Contains(t, prompt, "[질문]\n누가 신청하나요?")
}

func TestAnswerNothingFound(t *testing.T) {
	llm := &fakeLLM{reply: "unused"}

	ans, err := NewAnswerer(&fakeRetriever{}, llm, model.RAGConfig{}).Answer(context.Background(), "q", "PAN-1")
	require.NoError(t, err)
	assert.False(t, ans.Found)

	ans, err = NewAnswerer(&fakeRetriever{err: errors.New("connection reset")}, llm, model.RAGConfig{}).Answer(context.Background(), "q", "PAN-1")
	require.NoError(t, err, "retrieval failures are converted to an empty result")
	assert.False(t, ans.Found)
	assert.Zero(t, llm.calls)
}

func TestAnswerDefaultsTopKAndPropagatesGenerationError(t *testing.T) {
	ret := &fakeRetriever{passages: []model.Passage{{Text: "x", Page: 1, NoticeID: "N"}}}
	boom := errors.New("model unavailable")

	_, err := NewAnswerer(ret, &fakeLLM{err: boom}, model.RAGConfig{TopK: 0}).Answer(context.Background(), "q", "N")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, ret.gotTopK)
}
