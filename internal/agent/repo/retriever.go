package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/lh-counsel/server/internal/agent/model"
	errx "github.com/lh-counsel/server/internal/core/error"
	logx "github.com/lh-counsel/server/pkg/logger"
)

const passageQuery = `
	SELECT content, page, notice_id
	FROM notice_chunks
	WHERE notice_id = $1
	ORDER BY embedding <=> $2
	LIMIT $3
`

// NoticeRetriever runs cosine similarity search over notice chunks in pgvector.
type NoticeRetriever struct {
	db       *sqlx.DB
	embedder embedding.Embedder
}

func NewNoticeRetriever(db *sqlx.DB, embedder embedding.Embedder) *NoticeRetriever {
	return &NoticeRetriever{db: db, embedder: embedder}
}

// Retrieve returns up to topK passages of noticeID ranked by similarity to query.
func (r *NoticeRetriever) Retrieve(ctx context.Context, query, noticeID string, topK int) ([]model.Passage, error) {
	query = strings.TrimSpace(query)
	if query == "" || noticeID == "" {
		return nil, nil
	}
	if topK <= 0 {
		topK = 1
	}

	vectors, err := r.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, errx.WrapUpstream(err)
	}
	if len(vectors) == 0 {
		return nil, errx.WrapUpstream(fmt.Errorf("embedder returned no vector"))
	}

	var passages []model.Passage
	if err := r.db.SelectContext(ctx, &passages, passageQuery, noticeID, pgvector.NewVector(toFloat32(vectors[0])), topK); err != nil {
		logx.Error().Err(err).Str("notice_id", noticeID).Msg("passage similarity query failed")
		return nil, errx.WrapDatabase(err)
	}
	return passages, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

var _ model.PassageRetriever = (*NoticeRetriever)(nil)
