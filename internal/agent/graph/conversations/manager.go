package conversations

import (
	"slices"

	"github.com/cloudwego/eino/schema"

	"github.com/lh-counsel/server/internal/agent/model"
)

// MessagesManager shapes an agent's chat history into model context.
// Histories are append-only; every method returns a new slice.
type MessagesManager struct {
	maxMessages int
}

func NewMessagesManager(config model.ConversationConfig) *MessagesManager {
	return &MessagesManager{maxMessages: config.HistoryMaxMessages}
}

// Seed returns history, or a fresh history holding only the system prompt when empty.
func (cm *MessagesManager) Seed(history []*schema.Message, systemPrompt string) []*schema.Message {
	if len(history) > 0 {
		return slices.Clone(history)
	}
	return []*schema.Message{schema.SystemMessage(systemPrompt)}
}

// Append returns history with msgs added at the end.
func (cm *MessagesManager) Append(history []*schema.Message, msgs ...*schema.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(history)+len(msgs))
	out = append(out, history...)
	return append(out, msgs...)
}

// BuildChatContext keeps the leading system messages and the most recent
// maxMessages of the rest. A non-positive limit sends the full history.
func (cm *MessagesManager) BuildChatContext(history []*schema.Message) []*schema.Message {
	if cm.maxMessages <= 0 {
		return slices.Clone(history)
	}
	head := 0
	for head < len(history) && history[head] != nil && history[head].Role == schema.System {
		head++
	}
	out := slices.Clone(history[:head])
	return append(out, trimTail(history[head:], cm.maxMessages)...)
}

// ====================== Helper function ======================
func trimTail(messages []*schema.Message, maxMessages int) []*schema.Message {
	if len(messages) <= maxMessages {
		return slices.Clone(messages)
	}
	return slices.Clone(messages[len(messages)-maxMessages:])
}
