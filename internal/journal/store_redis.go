package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"eet/pkg/platform/sentinel"
)

const (
	journalKeyPrefix = "eet:journal:"
	defaultRedisTTL  = 30 * 24 * time.Hour
)

// RedisStore keeps each receipt's attempts in a Redis list with a TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets how long a receipt's history is kept after its last attempt.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, ttl: defaultRedisTTL}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *RedisStore) Record(ctx context.Context, e Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}
	key := journalKeyPrefix + e.MessageUUID

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record submission: %w", err)
	}
	return nil
}

func (s *RedisStore) Find(ctx context.Context, messageUUID string) ([]Entry, error) {
	items, err := s.client.LRange(ctx, journalKeyPrefix+messageUUID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("find submissions: %w", err)
	}
	if len(items) == 0 {
		return nil, sentinel.ErrNotFound
	}
	out := make([]Entry, 0, len(items))
	for _, item := range items {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("decode journal entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}
