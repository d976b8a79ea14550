package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CounterStore is the expiring counter storage behind the limiter engine.
// Implementations must treat a missing or expired key as zero usage.
type CounterStore interface {
	// Get returns the current count for key, 0 if absent.
	Get(ctx context.Context, key string) (int64, error)
	// Incr atomically increments the counter, starting a fresh window with
	// the given TTL when the key did not exist. Returns the new count.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	// Delete removes a single counter.
	Delete(ctx context.Context, key string) error
	// DeletePattern removes every counter matching a glob pattern and
	// returns how many keys were cleared.
	DeletePattern(ctx context.Context, pattern string) (int, error)
}

// RedisStore implements CounterStore on Redis using INCR with an expiry set
// on the first hit of each window. The increment is atomic, so concurrent
// requests against the same key cannot under-count.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps a Redis client as a counter store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (int64, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		// First request of the window anchors the expiry horizon.
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) DeletePattern(ctx context.Context, pattern string) (int, error) {
	cleared := 0
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return cleared, err
		}
		cleared++
	}
	return cleared, iter.Err()
}

// MemoryStore is an in-process CounterStore for tests and single-node
// development. The clock is injectable so window expiry can be exercised
// without sleeping.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// SetClock replaces the store's time source.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Get(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || !e.expiresAt.After(s.now()) {
		return 0, nil
	}
	return e.count, nil
}

func (s *MemoryStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || !e.expiresAt.After(s.now()) {
		e = &memoryEntry{expiresAt: s.now().Add(window)}
		s.entries[key] = e
	}
	e.count++
	return e.count, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) DeletePattern(ctx context.Context, pattern string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cleared := 0
	for key := range s.entries {
		if matchPattern(pattern, key) {
			delete(s.entries, key)
			cleared++
		}
	}
	return cleared, nil
}

// matchPattern supports the single trailing-star globs the reset API uses.
func matchPattern(pattern, key string) bool {
	if pattern == key {
		return true
	}
	if n := len(pattern); n > 0 && pattern[n-1] == '*' {
		prefix := pattern[:n-1]
		return len(key) >= len(prefix) && key[:len(prefix)] == prefix
	}
	return false
}
