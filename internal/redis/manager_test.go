package redis_test

import (
	"strconv"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/robalyx/draftguard/internal/redis"
	"github.com/robalyx/draftguard/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestManagerReusesClientsPerIndex(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	host, portStr, _ := strings.Cut(mr.Addr(), ":")
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	manager := redis.NewManager(&config.Redis{Host: host, Port: port}, zaptest.NewLogger(t))
	t.Cleanup(manager.Close)

	queue, err := manager.GetClient(redis.QueueDBIndex)
	require.NoError(t, err)

	again, err := manager.GetClient(redis.QueueDBIndex)
	require.NoError(t, err)
	assert.Same(t, queue, again)

	cache, err := manager.GetClient(redis.CacheDBIndex)
	require.NoError(t, err)

	ctx := t.Context()
	require.NoError(t, queue.Do(ctx, queue.B().Set().Key("k").Value("queue").Build()).Error())
	require.NoError(t, cache.Do(ctx, cache.B().Set().Key("k").Value("cache").Build()).Error())

	mr.Select(redis.QueueDBIndex)
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "queue", got)

	require.NoError(t, manager.Ping(ctx))
}
