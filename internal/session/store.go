package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemoryStore はプロセス内だけのストア（テスト・単体起動用）。
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]Session{}}
}

func (m *MemoryStore) Load(ctx context.Context, terminal string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.data[terminal]
	if !ok {
		return Session{}, ErrNoSession
	}
	return s, nil
}

func (m *MemoryStore) Save(ctx context.Context, terminal string, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[terminal] = s
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, terminal string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, terminal)
	return nil
}

// RedisStore はセッションを JSON で redis に置く。TTL はトークンの有効期限に合わせる。
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Load(ctx context.Context, terminal string) (Session, error) {
	data, err := r.client.Get(ctx, sessionKey(terminal)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("redis get failed: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("unmarshal session failed: %w", err)
	}
	return s, nil
}

func (r *RedisStore) Save(ctx context.Context, terminal string, s Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session failed: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(terminal), b, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, terminal string) error {
	if err := r.client.Del(ctx, sessionKey(terminal)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func sessionKey(terminal string) string {
	return fmt.Sprintf("pos:session:%s", terminal)
}
