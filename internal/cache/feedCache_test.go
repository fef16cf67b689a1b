package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"mirror/internal/models"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping test in short mode.")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("redis container not available: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestNoopCacheNeverHits(t *testing.T) {
	c := NoopCache{}
	_, ok := c.Generation(context.Background(), models.MediaTypeImage)
	assert.False(t, ok)

	c.SetFeed(context.Background(), models.MediaTypeImage, 0, []models.FeedPost{{Username: "ana"}})
	_, ok = c.GetFeed(context.Background(), models.MediaTypeImage, 0)
	assert.False(t, ok)
	assert.NoError(t, c.Close())
}

func TestNewFromEnvWithoutRedis(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	_, ok := NewFromEnv().(NoopCache)
	assert.True(t, ok)
}

func TestRedisCacheRoundTripAndInvalidate(t *testing.T) {
	rdb := startRedis(t)
	c := NewRedisCache(rdb, time.Minute)
	ctx := context.Background()

	gen, ok := c.Generation(ctx, models.MediaTypeVideo)
	require.True(t, ok)
	assert.Zero(t, gen)

	_, ok = c.GetFeed(ctx, models.MediaTypeVideo, gen)
	assert.False(t, ok)

	posts := []models.FeedPost{
		{Post: models.Post{MediaPath: "a.mp4", Type: models.MediaTypeVideo, Likes: []string{"ben"}, Comments: []models.Comment{}}, Username: "ana"},
	}
	c.SetFeed(ctx, models.MediaTypeVideo, gen, posts)

	got, ok := c.GetFeed(ctx, models.MediaTypeVideo, gen)
	require.True(t, ok)
	assert.Equal(t, "a.mp4", got[0].MediaPath)
	assert.Equal(t, "ana", got[0].Username)
	assert.Equal(t, []string{"ben"}, got[0].Likes)

	c.Invalidate(ctx, models.MediaTypeVideo, models.MediaTypeImage)
	next, ok := c.Generation(ctx, models.MediaTypeVideo)
	require.True(t, ok)
	assert.Equal(t, gen+1, next)
	_, ok = c.GetFeed(ctx, models.MediaTypeVideo, next)
	assert.False(t, ok)
}

func TestRedisCacheIgnoresWritesFromOlderGeneration(t *testing.T) {
	rdb := startRedis(t)
	c := NewRedisCache(rdb, time.Minute)
	ctx := context.Background()

	stale, ok := c.Generation(ctx, models.MediaTypeImage)
	require.True(t, ok)

	c.Invalidate(ctx, models.MediaTypeImage)
	c.SetFeed(ctx, models.MediaTypeImage, stale, []models.FeedPost{{Username: "ana"}})

	current, ok := c.Generation(ctx, models.MediaTypeImage)
	require.True(t, ok)
	_, ok = c.GetFeed(ctx, models.MediaTypeImage, current)
	assert.False(t, ok)
}
