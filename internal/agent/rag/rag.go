// Package rag answers a question from passages of one selected notice.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/lh-counsel/server/internal/agent/dialog"
	"github.com/lh-counsel/server/internal/agent/graph/prompts"
	"github.com/lh-counsel/server/internal/agent/model"
	logx "github.com/lh-counsel/server/pkg/logger"
)

// Answer is the outcome of one grounded question.
type Answer struct {
	Found bool
	// Raw is the generated markdown; HTML is what the caller displays.
	Raw    string
	HTML   string
	Source *model.SourceRef
}

type Answerer struct {
	retriever model.PassageRetriever
	llm       model.Generator
	topK      int
}

func NewAnswerer(retriever model.PassageRetriever, llm model.Generator, cfg model.RAGConfig) *Answerer {
	topK := cfg.TopK
	if topK <= 0 {
		topK = 1
	}
	return &Answerer{retriever: retriever, llm: llm, topK: topK}
}

// Answer retrieves passages scoped to noticeID and generates a grounded reply.
// Retrieval failures count as "nothing found"; generation failures propagate.
func (a *Answerer) Answer(ctx context.Context, question, noticeID string) (Answer, error) {
	passages, err := a.retriever.Retrieve(ctx, question, noticeID, a.topK)
	if err != nil {
		logx.Error().Err(err).Str("notice_id", noticeID).Msg("Passage retrieval failed - treating as no result")
		passages = nil
	}
	if len(passages) == 0 {
		return Answer{}, nil
	}

	var b strings.Builder
	pages := make([]int, 0, len(passages))
	for i, p := range passages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(strings.TrimSpace(p.Text))
		pages = append(pages, p.Page)
	}
	// All top-K passages are assumed to come from one document.
	source := &model.SourceRef{NoticeID: passages[0].NoticeID, Pages: pages}

	msgs, err := prompts.RenderGrounding(ctx, b.String(), question)
	if err != nil {
		return Answer{}, err
	}
	resp, err := a.llm.Generate(ctx, msgs)
	if err != nil {
		return Answer{}, fmt.Errorf("generate grounded answer: %w", err)
	}

	logx.Debug().Str("notice_id", source.NoticeID).Ints("pages", pages).Msg("Grounded answer generated")
	return Answer{
		Found:  true,
		Raw:    resp.Content,
		HTML:   dialog.ToHTML(resp.Content),
		Source: source,
	}, nil
}
