package conversations

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lh-counsel/server/internal/agent/model"
)

func TestSeed(t *testing.T) {
	mm := NewMessagesManager(model.ConversationConfig{})

	h := mm.Seed(nil, "sys")
	require.Len(t, h, 1)
	assert.Equal(t, schema.System, h[0].Role)

	existing := []*schema.Message{schema.SystemMessage("old"), schema.UserMessage("hi")}
	h = mm.Seed(existing, "sys")
	assert.Equal(t, "old", h[0].Content)
	assert.Len(t, h, 2)
}

func TestAppendDoesNotAlias(t *testing.T) {
	mm := NewMessagesManager(model.ConversationConfig{})
	base := make([]*schema.Message, 1, 4)
	base[0] = schema.SystemMessage("sys")

	a := mm.Append(base, schema.UserMessage("a"))
	b := mm.Append(base, schema.UserMessage("b"))
	assert.Equal(t, "a", a[1].Content)
	assert.Equal(t, "b", b[1].Content)
}

func TestBuildChatContext(t *testing.T) {
	history := []*schema.Message{
		schema.SystemMessage("sys"),
		schema.UserMessage("u1"),
		schema.AssistantMessage("a1", nil),
		schema.UserMessage("u2"),
		schema.AssistantMessage("a2", nil),
	}

	full := NewMessagesManager(model.ConversationConfig{}).BuildChatContext(history)
	assert.Len(t, full, 5)

	windowed := NewMessagesManager(model.ConversationConfig{HistoryMaxMessages: 2}).BuildChatContext(history)
	require.Len(t, windowed, 3)
	assert.Equal(t, "sys", windowed[0].Content)
	assert.Equal(t, "u2", windowed[1].Content)
	assert.Equal(t, "a2", windowed[2].Content)
}
