package store

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cpunion/molt-bot/pkg/policy"
)

func setupRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	url := os.Getenv("MOLTBOOK_TEST_REDIS_URL")
	if url == "" || testing.Short() {
		t.Skip("set MOLTBOOK_TEST_REDIS_URL to run redis integration tests")
	}

	key := fmt.Sprintf("molt-bot:test:%d", time.Now().UnixNano())
	s, err := NewRedisStore(url, key)
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))
	t.Cleanup(func() {
		_ = s.rdb.Del(context.Background(), key).Err()
		_ = s.Close()
	})
	return s
}

func TestRedisStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := setupRedisStore(t)

	_, err := s.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	now := time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC)
	state := policy.MarkReplied(policy.DefaultState(now), "p1", now)
	require.NoError(t, s.Save(ctx, state))

	first, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, first.CommentsToday)
	require.True(t, first.HasSeen("p1"))

	require.NoError(t, s.Save(ctx, first))
	second, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, reflect.DeepEqual(first, second))
}

func TestNewRedisStore_BadURL(t *testing.T) {
	_, err := NewRedisStore("not-a-url://", "")
	require.Error(t, err)
}
