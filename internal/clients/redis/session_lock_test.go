package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/diagnosis-backend/internal/platform/lock"
	"github.com/yungbote/diagnosis-backend/internal/platform/logger"
)

func newTestLocker(t *testing.T, wait time.Duration) *SessionLocker {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	l, err := NewSessionLocker(logger.Nop(), SessionLockerConfig{Addr: addr, TTL: time.Second, Wait: wait})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestSessionLockerExclusive(t *testing.T) {
	l := newTestLocker(t, 50*time.Millisecond)
	ctx := context.Background()
	key := lock.SessionKey("test-" + time.Now().Format(time.RFC3339Nano))

	unlock, err := l.Lock(ctx, key)
	require.NoError(t, err)

	_, err = l.Lock(ctx, key)
	require.True(t, errors.Is(err, lock.ErrTimeout), "got %v", err)

	require.NoError(t, unlock(ctx))
	require.NoError(t, unlock(ctx))

	unlock2, err := l.Lock(ctx, key)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}

func TestSessionLockerReleaseIgnoresForeignToken(t *testing.T) {
	l := newTestLocker(t, 50*time.Millisecond)
	ctx := context.Background()
	key := lock.SessionKey("foreign-" + time.Now().Format(time.RFC3339Nano))
	t.Cleanup(func() { _ = l.rdb.Del(context.Background(), key).Err() })

	unlock, err := l.Lock(ctx, key)
	require.NoError(t, err)

	// Our lease lapsed and another instance took the key.
	require.NoError(t, l.rdb.Set(ctx, key, "someone-else", 5*time.Second).Err())

	require.NoError(t, unlock(ctx))
	got, err := l.rdb.Get(ctx, key).Result()
	require.NoError(t, err)
	require.Equal(t, "someone-else", got)

	_, err = l.Lock(ctx, key)
	require.ErrorIs(t, err, lock.ErrTimeout)
}

func TestNewSessionLockerRequiresAddr(t *testing.T) {
	_, err := NewSessionLocker(logger.Nop(), SessionLockerConfig{})
	require.Error(t, err)
}
