// Package cache provides list caching for polygons.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/polygon-manager/backend/internal/config"
	"github.com/polygon-manager/backend/internal/models"
)

const (
	// Cache keys
	generationKey      = "polygons:generation"
	allPolygonsKeyBase = "polygons:all:"

	// Default TTL for cached items
	defaultTTL = 5 * time.Minute
)

// Cache defines the interface for caching the polygon list.
//
// Every mutation bumps a generation counter. A list is stored under the
// generation that was current before it was read from the database, and only
// the current generation is ever served, so a list computed concurrently with
// a mutation is never returned.
type Cache interface {
	// Generation returns the current generation.
	Generation(ctx context.Context) (int64, error)

	// GetAll returns the cached list for the current generation.
	GetAll(ctx context.Context) ([]models.Polygon, bool, error)

	// SetAll stores a list read while generation was current.
	SetAll(ctx context.Context, generation int64, polygons []models.Polygon) error

	// Invalidate starts a new generation.
	Invalidate(ctx context.Context) error

	// Close closes the cache connection.
	Close() error
}

// New returns a Redis cache when REDIS_URL is configured and a no-op cache
// otherwise.
func New(cfg *config.Config, logger *zap.Logger) (Cache, error) {
	if cfg.RedisURL == "" {
		logger.Info("Redis not configured, list cache disabled")
		return NoopCache{}, nil
	}
	return NewRedisCache(cfg, logger)
}

// RedisCache implements Cache using Redis.
type RedisCache struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewRedisCache creates a new Redis cache.
func NewRedisCache(cfg *config.Config, logger *zap.Logger) (*RedisCache, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Connected to Redis cache")

	return &RedisCache{
		client: client,
		logger: logger,
		ttl:    defaultTTL,
	}, nil
}

func allPolygonsKey(generation int64) string {
	return allPolygonsKeyBase + strconv.FormatInt(generation, 10)
}

// Generation returns the current generation; a missing counter is generation 0.
func (c *RedisCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return gen, nil
}

// GetAll retrieves the cached list for the current generation.
func (c *RedisCache) GetAll(ctx context.Context) ([]models.Polygon, bool, error) {
	gen, err := c.Generation(ctx)
	if err != nil {
		c.logger.Warn("Failed to read cache generation", zap.Error(err))
		return nil, false, nil // Treat errors as cache miss
	}

	key := allPolygonsKey(gen)
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil // Cache miss
	}
	if err != nil {
		c.logger.Warn("Failed to get from cache", zap.String("key", key), zap.Error(err))
		return nil, false, nil
	}

	var polygons []models.Polygon
	if err := json.Unmarshal(data, &polygons); err != nil {
		c.logger.Warn("Failed to unmarshal cached polygons", zap.Error(err))
		return nil, false, nil
	}

	c.logger.Debug("Cache hit", zap.String("key", key))
	return polygons, true, nil
}

// SetAll stores polygons under the given generation.
func (c *RedisCache) SetAll(ctx context.Context, generation int64, polygons []models.Polygon) error {
	data, err := json.Marshal(polygons)
	if err != nil {
		c.logger.Warn("Failed to marshal polygons for cache", zap.Error(err))
		return err
	}

	key := allPolygonsKey(generation)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to set cache", zap.String("key", key), zap.Error(err))
		return err
	}

	c.logger.Debug("Cached polygons", zap.String("key", key), zap.Int("count", len(polygons)))
	return nil
}

// Invalidate bumps the generation so older lists are no longer served.
func (c *RedisCache) Invalidate(ctx context.Context) error {
	gen, err := c.client.Incr(ctx, generationKey).Result()
	if err != nil {
		c.logger.Warn("Failed to invalidate cache", zap.Error(err))
		return err
	}
	_ = c.client.Del(ctx, allPolygonsKey(gen-1)).Err()
	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	c.logger.Info("Closing Redis connection")
	return c.client.Close()
}

// NoopCache never stores anything.
type NoopCache struct{}

func (NoopCache) Generation(context.Context) (int64, error) { return 0, nil }

func (NoopCache) GetAll(context.Context) ([]models.Polygon, bool, error) { return nil, false, nil }

func (NoopCache) SetAll(context.Context, int64, []models.Polygon) error { return nil }

func (NoopCache) Invalidate(context.Context) error { return nil }

func (NoopCache) Close() error { return nil }
