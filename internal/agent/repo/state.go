package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/api-support-chatbot/server/internal/agent/model"
	errx "github.com/api-support-chatbot/server/internal/core/error"
	logx "github.com/api-support-chatbot/server/pkg/logger"
)

// RedisStateRepository checkpoints the full pipeline state per conversation
// thread as a JSON blob with a sliding TTL.
type RedisStateRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisStateRepository(rdb redis.Cmdable, ttl time.Duration) *RedisStateRepository {
	return &RedisStateRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisStateRepository) stateKey(threadID string) string {
	return fmt.Sprintf("support:thread:%s:state", threadID)
}

// LoadState returns the checkpointed state for the thread. A missing key is
// not an error: the first turn of a conversation gets a fresh state.
func (r *RedisStateRepository) LoadState(ctx context.Context, threadID string) (*model.PipelineState, error) {
	key := r.stateKey(threadID)

	raw, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.NewPipelineState(threadID), nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load pipeline state from redis")
		return nil, errx.WrapRedis(err)
	}

	var state model.PipelineState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		logx.Error().Err(err).Str("thread_id", threadID).Msg("failed to unmarshal pipeline state")
		return nil, fmt.Errorf("unmarshal pipeline state: %w", err)
	}
	if state.ThreadID == "" {
		state.ThreadID = threadID
	}
	return &state, nil
}

func (r *RedisStateRepository) SaveState(ctx context.Context, state *model.PipelineState) error {
	if state == nil || state.ThreadID == "" {
		return fmt.Errorf("state without thread id")
	}

	b, err := json.Marshal(state)
	if err != nil {
		logx.Error().Err(err).Str("thread_id", state.ThreadID).Msg("failed to marshal pipeline state")
		return fmt.Errorf("marshal pipeline state: %w", err)
	}

	key := r.stateKey(state.ThreadID)
	if err := r.rdb.Set(ctx, key, b, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save pipeline state to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisStateRepository) ClearState(ctx context.Context, threadID string) error {
	key := r.stateKey(threadID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete pipeline state from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.StateRepository = (*RedisStateRepository)(nil)
