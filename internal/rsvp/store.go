package rsvp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix 是确认列表的键前缀。
const KeyPrefix = "celebria.confirmations."

func Key(slug string) string {
	return KeyPrefix + slug
}

// RedisStore 把每个邀请函的列表存为 Redis list，元素是 JSON 记录。
type RedisStore struct {
	client redis.Cmdable
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Append(ctx context.Context, slug string, r Record) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := s.client.RPush(ctx, Key(slug), payload).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", Key(slug), err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, slug string) ([]Record, error) {
	raw, err := s.client.LRange(ctx, Key(slug), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", Key(slug), err)
	}
	out := make([]Record, 0, len(raw))
	for _, item := range raw {
		var r Record
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

// MemoryStore 是进程内的 FallbackStore。
type MemoryStore struct {
	mu    sync.Mutex
	lists map[string][]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{lists: map[string][]Record{}}
}

func (s *MemoryStore) Append(_ context.Context, slug string, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[slug] = append(s.lists[slug], r)
	return nil
}

func (s *MemoryStore) List(_ context.Context, slug string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.lists[slug]...), nil
}
