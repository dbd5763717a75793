// Package repo holds the concrete collaborators behind the agent ports:
// session state in redis, housing and loan lookups in SQLite, the LH notice
// API and the pgvector passage store.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/lh-counsel/server/internal/agent/model"
	errx "github.com/lh-counsel/server/internal/core/error"
	logx "github.com/lh-counsel/server/pkg/logger"
)

type RedisStateRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisStateRepository(rdb redis.Cmdable, ttl time.Duration) *RedisStateRepository {
	return &RedisStateRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisStateRepository) stateKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:state", conversationID)
}

// Load returns model.ErrConversationNotFound when nothing is stored.
func (r *RedisStateRepository) Load(ctx context.Context, conversationID string) (*model.ConversationState, error) {
	key := r.stateKey(conversationID)

	raw, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrConversationNotFound
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load conversation state from redis")
		return nil, errx.WrapRedis(err)
	}

	var s model.ConversationState
	if err := sonic.Unmarshal(raw, &s); err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to unmarshal conversation state")
		return nil, fmt.Errorf("unmarshal conversation state: %w", err)
	}
	return &s, nil
}

// Save overwrites the stored state and extends its TTL.
func (r *RedisStateRepository) Save(ctx context.Context, conversationID string, state model.ConversationState) error {
	// the query is per-turn input, not conversation state
	state.Query = ""
	b, err := sonic.Marshal(state)
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to marshal conversation state")
		return fmt.Errorf("marshal conversation state: %w", err)
	}
	key := r.stateKey(conversationID)
	if err := r.rdb.Set(ctx, key, b, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save conversation state to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisStateRepository) Clear(ctx context.Context, conversationID string) error {
	key := r.stateKey(conversationID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete conversation state from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.StateRepository = (*RedisStateRepository)(nil)
