package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/lh-counsel/server/internal/agent/model"
	"github.com/lh-counsel/server/internal/metrics"
	logx "github.com/lh-counsel/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	RouterConf *model.RouterModelConfig
	ChatConf   *model.ChatModelConfig
}

// ChatModels holds the classification and counselling models, both metered.
type ChatModels struct {
	Router model.Generator
	Chat   model.Generator
}

// NewGenAIClient creates the Gemini API client shared by chat and embedding models.
func NewGenAIClient(ctx context.Context, apiKey, baseURL string) (*genai.Client, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		clientCfg.HTTPOptions.BaseURL = baseURL
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}
	return client, nil
}

// NewChatModels creates the router and chat models on a shared client.
func NewChatModels(ctx context.Context, client *genai.Client, config ChatModelConfig) (*ChatModels, error) {
	if config.RouterConf == nil || config.ChatConf == nil {
		return nil, fmt.Errorf("chat model config is nil")
	}

	// The router emits a single token; thinking is disabled to keep it cheap.
	routerModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.RouterConf.Model,
		Temperature: &config.RouterConf.Temperature,
		MaxTokens:   &config.RouterConf.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(int32(0)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating router model")
		return nil, fmt.Errorf("error creating router model: %w", err)
	}

	chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.ChatConf.Model,
		Temperature: &config.ChatConf.Temperature,
		MaxTokens:   &config.ChatConf.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(int32(1024)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating chat model")
		return nil, fmt.Errorf("error creating chat model: %w", err)
	}

	return &ChatModels{
		Router: NewMeteredGenerator(routerModel, config.RouterConf.Model, NodeIntentRouter),
		Chat:   NewMeteredGenerator(chatModel, config.ChatConf.Model, "Counsellor"),
	}, nil
}

// MeteredGenerator wraps a model with latency metrics and per-call usage cost logging.
type MeteredGenerator struct {
	inner     model.Generator
	modelName string
	caller    string
}

func NewMeteredGenerator(inner model.Generator, modelName, caller string) *MeteredGenerator {
	return &MeteredGenerator{inner: inner, modelName: modelName, caller: caller}
}

func (g *MeteredGenerator) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	start := time.Now()
	out, err := g.inner.Generate(ctx, input, opts...)
	metrics.ObserveGeneration(g.modelName, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("%s returned no message", g.modelName)
	}
	g.recordUsage(ctx, out)
	return out, nil
}

// recordUsage computes and logs usage cost, accumulating the total into the graph state.
func (g *MeteredGenerator) recordUsage(ctx context.Context, out *schema.Message) {
	if out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return
	}
	cost := model.CostOf(g.modelName, out.ResponseMeta.Usage)
	if out.Extra == nil {
		out.Extra = map[string]any{}
	}
	out.Extra["usage_cost"] = cost
	running := addCost(ctx, cost.TotalCost)
	out.Extra["usage_cost_total_usd"] = running
	metrics.AddGenerationCost(g.modelName, cost.TotalCost)

	logx.Debug().
		Str("conversation_id", snapshotAppState(ctx).ConversationID).
		Str("node", g.caller).
		Str("model", g.modelName).
		Int("prompt_tokens", cost.PromptTokens).
		Int("completion_tokens", cost.CompletionTokens).
		Int("total_tokens", cost.TotalTokens).
		Float64("input_cost_usd", cost.InputCost).
		Float64("output_cost_usd", cost.OutputCost).
		Float64("total_cost_usd", cost.TotalCost).
		Msg("LLM usage")
}
