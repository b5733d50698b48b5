package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFixedWindow(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := m.Check(ctx, "spin:u1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := m.Check(ctx, "spin:u1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)

	// Other keys have their own budget.
	res, _ = m.Check(ctx, "spin:u2", 3, time.Minute)
	assert.True(t, res.Allowed)

	now = now.Add(time.Minute)
	res, _ = m.Check(ctx, "spin:u1", 3, time.Minute)
	assert.True(t, res.Allowed)
	assert.Equal(t, 2, res.Remaining)
}

func TestMemoryNormalizesBudget(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	res, _ := m.Check(ctx, "", 0, 0)
	assert.True(t, res.Allowed)
	res, _ = m.Check(ctx, "", 0, 0)
	assert.False(t, res.Allowed, "limit below 1 is raised to 1")
}

func TestMemorySweepDropsExpiredBuckets(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	now := time.Now()
	m.now = func() time.Time { return now }
	_, _ = m.Check(context.Background(), "k", 1, time.Second)

	now = now.Add(2 * time.Second)
	m.sweep()
	assert.Empty(t, m.buckets)
}

func TestRedisFixedWindow(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	l := NewRedis(client, "rl:")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := l.Check(ctx, "validate:u1", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 1-i, res.Remaining)
	}

	res, err := l.Check(ctx, "validate:u1", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	srv.FastForward(time.Minute + time.Second)

	res, err = l.Check(ctx, "validate:u1", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

var _ Limiter = (*Memory)(nil)
var _ Limiter = (*Redis)(nil)
