package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRedisSlidingWindow(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	w := NewRedisSlidingWindow(client, Rule{Limit: 2, Window: time.Minute}, map[string]Rule{
		"strategy:browser": {Limit: 1, Window: time.Minute},
	}, zap.NewNop())
	w.now = clock.Now

	assert.True(t, w.Admit(ctx, "strategy:api"))
	clock.Advance(time.Second)
	assert.True(t, w.Admit(ctx, "strategy:api"))
	assert.False(t, w.Admit(ctx, "strategy:api"))

	assert.True(t, w.Admit(ctx, "strategy:browser"))
	assert.False(t, w.Admit(ctx, "strategy:browser"))

	clock.Advance(time.Minute)
	assert.True(t, w.Admit(ctx, "strategy:api"))
}

func TestRedisSlidingWindow_FailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()

	w := NewRedisSlidingWindow(client, Rule{Limit: 1, Window: time.Minute}, nil, zap.NewNop())
	mr.Close()

	for i := 0; i < 3; i++ {
		assert.True(t, w.Admit(context.Background(), "strategy:api"))
	}
}
