package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vasset/parsing-service/internal/utils"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, ""), mr, client
}

func TestRedisStore_RoundTripAndTTL(t *testing.T) {
	ctx := context.Background()
	s, mr, _ := newTestRedisStore(t)

	require.NoError(t, s.Set(ctx, "7549035040701844779", sampleMetadata("7549035040701844779"), time.Minute))
	assert.True(t, mr.Exists("parser:video:7549035040701844779"))

	got, err := s.Get(ctx, "7549035040701844779")
	require.NoError(t, err)
	assert.Equal(t, sampleMetadata("7549035040701844779"), got)

	mr.FastForward(time.Minute)
	_, err = s.Get(ctx, "7549035040701844779")
	assert.ErrorIs(t, err, utils.ErrCacheMiss)
}

func TestRedisStore_ClearOnlyOwnPrefix(t *testing.T) {
	ctx := context.Background()
	s, mr, _ := newTestRedisStore(t)

	for i := 0; i < 450; i++ {
		id := fmt.Sprintf("%d", i)
		require.NoError(t, s.Set(ctx, id, sampleMetadata(id), 0))
	}
	require.NoError(t, mr.Set("other:key", "keep"))

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 450, n)

	require.NoError(t, s.Clear(ctx))
	n, err = s.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, mr.Exists("other:key"))
}

func TestRedisStore_DeleteAndCorrupt(t *testing.T) {
	ctx := context.Background()
	s, mr, _ := newTestRedisStore(t)

	require.NoError(t, s.Set(ctx, "1", sampleMetadata("1"), 0))
	require.NoError(t, s.Delete(ctx, "1"))
	_, err := s.Get(ctx, "1")
	assert.ErrorIs(t, err, utils.ErrCacheMiss)

	require.NoError(t, mr.Set("parser:video:2", "{not json"))
	_, err = s.Get(ctx, "2")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, utils.ErrCacheMiss)
}
