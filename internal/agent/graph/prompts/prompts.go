package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/router_prompt.txt
var routerPrompt string

//go:embed template/grounding_prompt.txt
var groundingPrompt string

//go:embed template/loan_table_prompt.txt
var loanTablePrompt string

// System messages seeding each agent's chat history.
const (
	HousingCounsellor = "너는 친절한 주택 청약 상담사야. 사용자가 이해하기 쉽게 설명해 줘."
	LoanCounsellor    = "너는 친절한 금융 상담사야. 사용자가 이해하기 쉽게 설명해 줘."
)

// RenderRouter builds the single-message classification request for the router.
func RenderRouter(ctx context.Context, query string) ([]*schema.Message, error) {
	return format(ctx, "router", routerPrompt, map[string]any{"query": query})
}

// RenderGrounding embeds retrieved passages and the user question into one prompt.
func RenderGrounding(ctx context.Context, passages, question string) ([]*schema.Message, error) {
	return format(ctx, "grounding", groundingPrompt, map[string]any{
		"context":  passages,
		"question": question,
	})
}

// RenderLoanTable builds the instruction-laden user turn that carries the comparison table.
func RenderLoanTable(ctx context.Context, table string) (*schema.Message, error) {
	msgs, err := format(ctx, "loan table", loanTablePrompt, map[string]any{"table": table})
	if err != nil {
		return nil, err
	}
	return msgs[0], nil
}

// format renders through the Eino prompt component so prompt callbacks fire.
func format(ctx context.Context, name, tpl string, vars map[string]any) ([]*schema.Message, error) {
	t := prompt.FromMessages(schema.FString, schema.UserMessage(tpl))
	msgs, err := t.Format(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("%s prompt render: %w", name, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return nil, fmt.Errorf("%s prompt render: empty result", name)
	}
	return msgs, nil
}
