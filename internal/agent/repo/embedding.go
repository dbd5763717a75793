package repo

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/embedding"
	"google.golang.org/genai"

	"github.com/lh-counsel/server/internal/agent/model"
)

const embeddingTaskRetrievalQuery = "RETRIEVAL_QUERY"

// GeminiEmbedder embeds search queries with a Gemini embedding model.
type GeminiEmbedder struct {
	client     *genai.Client
	model      string
	dimensions int32
}

func NewGeminiEmbedder(client *genai.Client, cfg model.EmbeddingConfig) (*GeminiEmbedder, error) {
	if client == nil {
		return nil, fmt.Errorf("genai client is nil")
	}
	return &GeminiEmbedder{client: client, model: cfg.Model, dimensions: int32(cfg.Dimensions)}, nil
}

func (e *GeminiEmbedder) GetType() string { return "GeminiEmbedder" }

func (e *GeminiEmbedder) IsCallbacksEnabled() bool { return true }

// EmbedStrings returns one vector per text, in order.
func (e *GeminiEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) (vectors [][]float64, err error) {
	ctx = callbacks.EnsureRunInfo(ctx, e.GetType(), components.ComponentOfEmbedding)
	ctx = callbacks.OnStart(ctx, &embedding.CallbackInput{Texts: texts, Config: &embedding.Config{Model: e.model}})
	defer func() {
		if err != nil {
			callbacks.OnError(ctx, err)
			return
		}
		callbacks.OnEnd(ctx, &embedding.CallbackOutput{Embeddings: vectors, Config: &embedding.Config{Model: e.model}})
	}()

	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
	}
	cfg := &genai.EmbedContentConfig{TaskType: embeddingTaskRetrievalQuery}
	if e.dimensions > 0 {
		cfg.OutputDimensionality = genai.Ptr(e.dimensions)
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed content: expected %d embeddings", len(texts))
	}

	vectors = make([][]float64, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		vec := make([]float64, len(emb.Values))
		for j, v := range emb.Values {
			vec[j] = float64(v)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

var _ embedding.Embedder = (*GeminiEmbedder)(nil)
