package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreIncrStartsWindowOnFirstHit(t *testing.T) {
	ctx := t.Context()
	store := NewMemoryStore()
	now := time.Now()
	store.SetClock(func() time.Time { return now })

	count, err := store.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = store.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// The expiry horizon was anchored by the first hit; later increments do
	// not extend it.
	now = now.Add(time.Minute + time.Second)
	count, err = store.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMemoryStoreGetTreatsExpiredAsZero(t *testing.T) {
	ctx := t.Context()
	store := NewMemoryStore()
	now := time.Now()
	store.SetClock(func() time.Time { return now })

	_, err := store.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	count, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMatchPattern(t *testing.T) {
	assert.True(t, matchPattern("ratelimit:u1:*", "ratelimit:u1:/api/projects"))
	assert.True(t, matchPattern("ratelimit:u1:/x", "ratelimit:u1:/x"))
	assert.False(t, matchPattern("ratelimit:u1:*", "ratelimit:u10:/x"))
	assert.False(t, matchPattern("ratelimit:u1:/x", "ratelimit:u1:/y"))
	assert.False(t, matchPattern("", "ratelimit:u1:/x"))
}
