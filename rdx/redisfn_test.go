package rdx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConn(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	conn := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = conn.Close() })
	return mr, conn
}

func TestLockerExclusive(t *testing.T) {
	_, conn := newTestConn(t)
	l := NewLocker(conn, "delivery_lock:", 5*time.Second)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "agent-1")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "agent-1")
	assert.ErrorIs(t, err, ErrLocked)

	_, err = l.Acquire(ctx, "agent-2")
	assert.NoError(t, err, "locks are per key")

	release()
	again, err := l.Acquire(ctx, "agent-1")
	require.NoError(t, err)
	again()
}

func TestLockerReleaseKeepsForeignLock(t *testing.T) {
	mr, conn := newTestConn(t)
	l := NewLocker(conn, "lock:", time.Second)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "k")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	other, err := l.Acquire(ctx, "k")
	require.NoError(t, err)

	release()
	assert.True(t, mr.Exists("lock:k"), "stale release must not drop the new holder's lock")
	other()
	assert.False(t, mr.Exists("lock:k"))
}

func TestMarks(t *testing.T) {
	mr, conn := newTestConn(t)
	m := NewMarks(conn, "webhook:", time.Minute)
	ctx := context.Background()

	seen, err := m.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, m.Mark(ctx, "evt_1"))
	seen, err = m.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)

	mr.FastForward(2 * time.Minute)
	seen, err = m.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
}
