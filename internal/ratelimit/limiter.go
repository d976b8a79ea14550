package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Result is the outcome of a quota check for one key.
type Result struct {
	// Limit is the effective quota after role scaling.
	Limit int
	// Current is the usage recorded before this request.
	Current int64
	// Remaining is max(0, Limit-Current).
	Remaining int
	// ResetAt is when the current window horizon expires. The window is a
	// fixed window whose horizon is recreated relative to now on every
	// check; bursts across a window boundary are an accepted property of
	// this scheme.
	ResetAt time.Time
}

// Limiter decides admission for (key, quota) pairs over a CounterStore.
type Limiter struct {
	store  CounterStore
	logger *zap.Logger
	now    func() time.Time
}

// NewLimiter creates a limiter engine over the given counter store.
func NewLimiter(store CounterStore, logger *zap.Logger) *Limiter {
	return &Limiter{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock replaces the engine's time source, for tests.
func (l *Limiter) SetClock(now func() time.Time) {
	l.now = now
}

// Check reads current usage for key without recording the request. The
// caller admits the request iff Current < Limit; the check happens before
// the increment, so the (limit+1)-th request in a window is the first one
// rejected.
func (l *Limiter) Check(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	current, err := l.store.Get(ctx, key)
	if err != nil {
		return Result{}, fmt.Errorf("rate limit check for %s: %w", key, err)
	}

	remaining := limit - int(current)
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Limit:     limit,
		Current:   current,
		Remaining: remaining,
		ResetAt:   l.now().Add(window),
	}, nil
}

// Increment records one request against key, starting a fresh window with
// the given TTL if none is active.
func (l *Limiter) Increment(ctx context.Context, key string, window time.Duration) error {
	if _, err := l.store.Incr(ctx, key, window); err != nil {
		return fmt.Errorf("rate limit increment for %s: %w", key, err)
	}
	return nil
}

// Reset clears the counter for a single key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if err := l.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("rate limit reset for %s: %w", key, err)
	}
	l.logger.Info("Rate limit reset", zap.String("key", key))
	return nil
}

// ResetPattern clears every counter matching a glob pattern and returns how
// many keys were removed. Used by the admin reset endpoint when no path is
// given.
func (l *Limiter) ResetPattern(ctx context.Context, pattern string) (int, error) {
	cleared, err := l.store.DeletePattern(ctx, pattern)
	if err != nil {
		return cleared, fmt.Errorf("rate limit pattern reset for %s: %w", pattern, err)
	}
	l.logger.Info("Rate limit pattern reset", zap.String("pattern", pattern), zap.Int("cleared", cleared))
	return cleared, nil
}
