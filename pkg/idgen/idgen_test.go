package idgen

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDGenerator_Ordered(t *testing.T) {
	g := NewUUIDGenerator()
	ctx := context.Background()

	prev, err := g.Next(ctx)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		id, err := g.Next(ctx)
		require.NoError(t, err)
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestWUIDGenerator_Next(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	g := NewWUIDGenerator(rdb, "test", "solo:wuid:article")
	ctx := context.Background()

	seen := make(map[string]struct{})
	prev := ""
	for i := 0; i < 100; i++ {
		id, err := g.Next(ctx)
		require.NoError(t, err)
		assert.Len(t, id, 19)
		assert.Greater(t, id, prev)
		_, dup := seen[id]
		assert.False(t, dup)
		seen[id] = struct{}{}
		prev = id
	}

	// 计数器已经在 redis 中递增
	v, err := mr.Get("solo:wuid:article")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	// 第二个实例拿到不同的号段
	g2 := NewWUIDGenerator(rdb, "test2", "solo:wuid:article")
	id2, err := g2.Next(ctx)
	require.NoError(t, err)
	_, dup := seen[id2]
	assert.False(t, dup)
}

func TestWUIDGenerator_RedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1})
	defer rdb.Close()

	g := NewWUIDGenerator(rdb, "test", "solo:wuid:article")
	_, err = g.Next(context.Background())
	assert.Error(t, err)
}
