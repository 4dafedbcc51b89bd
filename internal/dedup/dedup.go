package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aman-zulfiqar/routediff/internal/constants"
)

// Filter remembers keys. Seen marks key and reports whether it had already
// been marked before this call.
type Filter interface {
	Seen(ctx context.Context, key string) (bool, error)
}

// Memory is a per-run in-process set.
type Memory struct {
	seen map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{seen: make(map[string]struct{})}
}

func (m *Memory) Seen(_ context.Context, key string) (bool, error) {
	if _, ok := m.seen[key]; ok {
		return true, nil
	}
	m.seen[key] = struct{}{}
	return false, nil
}

// Len returns the number of distinct keys seen so far.
func (m *Memory) Len() int {
	return len(m.seen)
}

// Disabled never reports a key as seen.
type Disabled struct{}

func (Disabled) Seen(context.Context, string) (bool, error) {
	return false, nil
}

// Redis keeps the set in Redis so several replay processes sharing a run ID
// split a log without replaying the same pair twice.
type Redis struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

func NewRedis(client redis.Cmdable, runID string) (*Redis, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	return &Redis{
		client: client,
		key:    constants.RedisKeySeenPrefix + runID,
		ttl:    constants.RedisSeenTTL,
	}, nil
}

func (r *Redis) Seen(ctx context.Context, key string) (bool, error) {
	pipe := r.client.TxPipeline()
	added := pipe.SAdd(ctx, r.key, key)
	pipe.Expire(ctx, r.key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("mark pair seen: %w", err)
	}
	return added.Val() == 0, nil
}

// Len returns the number of distinct keys stored for the run.
func (r *Redis) Len(ctx context.Context) (int64, error) {
	n, err := r.client.SCard(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("count seen pairs: %w", err)
	}
	return n, nil
}
