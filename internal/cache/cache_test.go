package cache

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/polygon-manager/backend/internal/config"
	"github.com/polygon-manager/backend/internal/geometry"
	"github.com/polygon-manager/backend/internal/models"
)

func TestNew_WithoutRedisIsNoop(t *testing.T) {
	c, err := New(&config.Config{}, zap.NewNop())
	require.NoError(t, err)

	_, ok := c.(NoopCache)
	assert.True(t, ok)

	ctx := context.Background()
	assert.NoError(t, c.SetAll(ctx, 0, []models.Polygon{{ID: 1}}))

	_, found, err := c.GetAll(ctx)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, c.Invalidate(ctx))
	assert.NoError(t, c.Close())
}

func TestNew_BadRedisURL(t *testing.T) {
	_, err := New(&config.Config{RedisURL: "not a url"}, zap.NewNop())
	assert.Error(t, err)
}

func newRedisCache(t *testing.T) *RedisCache {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	c, err := NewRedisCache(&config.Config{RedisURL: url}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.client.FlushDB(context.Background()).Err())
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisCache_GenerationGuardsStaleLists(t *testing.T) {
	c := newRedisCache(t)
	ctx := context.Background()

	polygons := []models.Polygon{{ID: 1, Name: "P1", Points: []geometry.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}}}

	gen, err := c.Generation(ctx)
	require.NoError(t, err)

	// A mutation lands between reading the generation and storing the list.
	require.NoError(t, c.Invalidate(ctx))
	require.NoError(t, c.SetAll(ctx, gen, polygons))

	_, found, err := c.GetAll(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	gen, err = c.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, c.SetAll(ctx, gen, polygons))

	cached, found, err := c.GetAll(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, polygons, cached)
}
