package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store holds issued session tokens. Implementations are created at startup
// and closed at shutdown; there is no package-level token state.
type Store interface {
	Put(ctx context.Context, token string, ttl time.Duration) error
	Valid(ctx context.Context, token string) (bool, error)
	Revoke(ctx context.Context, token string) error
	Close() error
}

// MemoryStore keeps tokens in process memory. Tokens do not survive a
// restart, matching cookie-session semantics.
type MemoryStore struct {
	mu     sync.Mutex
	expiry map[string]time.Time
}

// NewMemoryStore creates an empty in-memory token store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{expiry: make(map[string]time.Time)}
}

func (s *MemoryStore) Put(_ context.Context, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiry[token] = time.Now().Add(ttl)
	return nil
}

func (s *MemoryStore) Valid(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline, ok := s.expiry[token]
	if !ok {
		return false, nil
	}
	if time.Now().After(deadline) {
		delete(s.expiry, token)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Revoke(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.expiry, token)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

const redisTokenPrefix = "auth:token:"

// RedisStore keeps tokens in Redis so sessions survive restarts and are
// shared across replicas.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing Redis client. The client's lifecycle is
// owned by the caller; Close here is a no-op.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, token string, ttl time.Duration) error {
	return s.client.Set(ctx, redisTokenPrefix+token, "1", ttl).Err()
}

func (s *RedisStore) Valid(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Exists(ctx, redisTokenPrefix+token).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) Revoke(ctx context.Context, token string) error {
	return s.client.Del(ctx, redisTokenPrefix+token).Err()
}

func (s *RedisStore) Close() error { return nil }
