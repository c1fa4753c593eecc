package redisquota

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T, limit int) (*Tracker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tr := NewTracker(client, "test:quota", limit, time.UTC)
	tr.now = func() time.Time { return time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC) }
	return tr, mr
}

func TestTrackerReserve(t *testing.T) {
	tr, mr := newTestTracker(t, 250)
	ctx := context.Background()

	ok, err := tr.TryReserve(ctx, 100)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tr.TryReserve(ctx, 100)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tr.TryReserve(ctx, 100)
	require.NoError(t, err)
	assert.False(t, ok, "reservation above the limit must be denied")

	value, err := mr.Get("test:quota:2026-03-03")
	require.NoError(t, err)
	assert.Equal(t, "200", value)
	assert.True(t, mr.TTL("test:quota:2026-03-03") > 0)

	status, err := tr.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 200, status.Used)
	assert.Equal(t, 50, status.Remaining)
	assert.Equal(t, time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC), status.ResetAt)
}

func TestTrackerExhaustAndReset(t *testing.T) {
	tr, _ := newTestTracker(t, 100)
	ctx := context.Background()

	require.NoError(t, tr.Exhaust(ctx))
	ok, err := tr.TryReserve(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, tr.Reset(ctx))
	require.NoError(t, tr.Reset(ctx))

	status, err := tr.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, status.Used)
	assert.Equal(t, 100, status.Remaining)
}

func TestTrackerZeroCostSkipsRedis(t *testing.T) {
	tr, mr := newTestTracker(t, 0)

	ok, err := tr.TryReserve(context.Background(), 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, mr.Exists("test:quota:2026-03-03"))
}

func TestTrackerFailsClosedOnRedisError(t *testing.T) {
	tr, mr := newTestTracker(t, 100)
	mr.Close()

	ok, err := tr.TryReserve(context.Background(), 10)
	assert.Error(t, err)
	assert.False(t, ok)
}
