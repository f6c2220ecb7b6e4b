package runguard

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGuardSingleFlight(t *testing.T) {
	guard := newMemoryRunGuard(time.Minute)
	ctx := context.Background()

	release, ok, err := guard.TryAcquire(ctx, "follow-ups:process")
	require.NoError(t, err)
	require.True(t, ok)

	// Second acquisition of the same job is refused while the first holds it.
	_, ok, err = guard.TryAcquire(ctx, "follow-ups:process")
	require.NoError(t, err)
	assert.False(t, ok)

	// A different job is unaffected.
	otherRelease, ok, err := guard.TryAcquire(ctx, "tasks:send-reminders")
	require.NoError(t, err)
	require.True(t, ok)
	otherRelease()

	release()
	release, ok, err = guard.TryAcquire(ctx, "follow-ups:process")
	require.NoError(t, err)
	assert.True(t, ok)
	release()
}

func TestMemoryGuardExpiresStaleSlot(t *testing.T) {
	guard := newMemoryRunGuard(10 * time.Millisecond)
	ctx := context.Background()

	_, ok, err := guard.TryAcquire(ctx, "follow-ups:process")
	require.NoError(t, err)
	require.True(t, ok)
	// Never released, simulating a crashed run.

	time.Sleep(20 * time.Millisecond)

	release, ok, err := guard.TryAcquire(ctx, "follow-ups:process")
	require.NoError(t, err)
	assert.True(t, ok)
	release()
}

func TestRedisGuardSingleFlight(t *testing.T) {
	srv := miniredis.RunT(t)

	guard, err := New(srv.Addr(), "", 0, time.Minute)
	require.NoError(t, err)
	require.IsType(t, &redisRunGuard{}, guard)

	ctx := context.Background()
	release, ok, err := guard.TryAcquire(ctx, "follow-ups:process")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, srv.Exists("leadflow:job:follow-ups:process"))

	_, ok, err = guard.TryAcquire(ctx, "follow-ups:process")
	require.NoError(t, err)
	assert.False(t, ok)

	release()
	assert.False(t, srv.Exists("leadflow:job:follow-ups:process"))

	release, ok, err = guard.TryAcquire(ctx, "follow-ups:process")
	require.NoError(t, err)
	assert.True(t, ok)
	release()
}

func TestRedisGuardTTLBoundsCrashedRun(t *testing.T) {
	srv := miniredis.RunT(t)

	guard, err := New(srv.Addr(), "", 0, time.Minute)
	require.NoError(t, err)

	ctx := context.Background()
	_, ok, err := guard.TryAcquire(ctx, "follow-ups:process")
	require.NoError(t, err)
	require.True(t, ok)

	srv.FastForward(2 * time.Minute)

	release, ok, err := guard.TryAcquire(ctx, "follow-ups:process")
	require.NoError(t, err)
	assert.True(t, ok)
	release()
}

func TestNewFallsBackWithoutRedis(t *testing.T) {
	guard, err := New("", "", 0, time.Minute)
	require.NoError(t, err)
	assert.IsType(t, &memoryRunGuard{}, guard)

	// Unreachable Redis also falls back, reporting the ping error.
	guard, err = New("127.0.0.1:1", "", 0, time.Minute)
	require.Error(t, err)
	assert.IsType(t, &memoryRunGuard{}, guard)
}
