package model

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Pricing is USD per 1M text tokens.
type Pricing struct {
	InputPerM  float64
	OutputPerM float64
}

var defaultPricing = map[string]Pricing{
	"gemini-2.5-flash":      {InputPerM: 0.30, OutputPerM: 2.50},
	"gemini-2.5-flash-lite": {InputPerM: 0.10, OutputPerM: 0.40},
	"gemini-2.5-pro":        {InputPerM: 1.25, OutputPerM: 10.00},
}

// ResolvePricing matches the longest known model name prefix, so pinned
// versions such as "gemini-2.5-flash-001" or a "models/" path resolve to their
// family. Unknown models cost nothing.
func ResolvePricing(model string) Pricing {
	name := strings.TrimPrefix(model, "models/")
	var (
		best    Pricing
		bestLen int
	)
	for k, p := range defaultPricing {
		if strings.HasPrefix(name, k) && len(k) > bestLen {
			best, bestLen = p, len(k)
		}
	}
	return best
}

// UsageCost is the priced token usage of one generation call.
type UsageCost struct {
	Currency         string  `json:"currency"`
	Model            string  `json:"model"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	InputCost        float64 `json:"input_cost"`
	OutputCost       float64 `json:"output_cost"`
	TotalCost        float64 `json:"total_cost"`
}

// CostOf prices usage for the named model. A nil usage is free.
func CostOf(model string, usage *schema.TokenUsage) UsageCost {
	c := UsageCost{Currency: "USD", Model: model}
	if usage == nil {
		return c
	}
	p := ResolvePricing(model)
	c.PromptTokens = usage.PromptTokens
	c.CompletionTokens = usage.CompletionTokens
	c.TotalTokens = usage.TotalTokens
	c.InputCost = p.InputPerM * float64(usage.PromptTokens) / 1_000_000.0
	c.OutputCost = p.OutputPerM * float64(usage.CompletionTokens) / 1_000_000.0
	c.TotalCost = c.InputCost + c.OutputCost
	return c
}
