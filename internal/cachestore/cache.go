// Package cachestore provides a look-aside cache for resolved URLs.
// The cache is advisory only: a miss or a stale entry is never treated as
// authoritative absence, and entries simply age out after the configured TTL.
package cachestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mkravets/shortener/internal/config"
	"github.com/mkravets/shortener/internal/models"
	"github.com/redis/go-redis/v9"
)

// connectTimeout bounds the initial redis ping.
const connectTimeout = 15 * time.Second

// ErrCacheMiss is returned when a code is not cached.
var ErrCacheMiss = errors.New("url not cached")

// Cache stores resolved URLs in redis for a bounded time window.
type Cache struct {
	rdb    *redis.Client
	logger *slog.Logger
	cfg    config.Redis
}

func New(ctx context.Context, logger *slog.Logger, cfg config.Redis) (*Cache, error) {
	const op = "cachestore.New"

	if cfg.Addr == "" {
		return nil, fmt.Errorf("%s: missing redis address", op)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: failed to ping redis: %w", op, err)
	}

	return &Cache{
		rdb:    rdb,
		logger: logger,
		cfg:    cfg,
	}, nil
}

// GetURL retrieves a cached URL by its code.
// It returns ErrCacheMiss if the code is not cached.
func (c *Cache) GetURL(ctx context.Context, code string) (*models.URL, error) {
	const op = "cachestore.Cache.GetURL"

	val, err := c.rdb.Get(ctx, c.key(code)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			cacheMisses.Inc()
			return nil, fmt.Errorf("%s: %w", op, ErrCacheMiss)
		}

		return nil, fmt.Errorf("%s: failed to get cached url: %w", op, err)
	}

	var url models.URL
	if err := json.Unmarshal([]byte(val), &url); err != nil {
		// A corrupt entry counts as a miss; the store remains authoritative.
		c.logger.Warn("dropping malformed cache entry", slog.String("code", code), slog.Any("err", err))
		cacheMisses.Inc()
		return nil, fmt.Errorf("%s: %w", op, ErrCacheMiss)
	}

	cacheHits.Inc()

	return &url, nil
}

// SetURL caches a resolved URL for the configured TTL.
// Access events are not cached.
func (c *Cache) SetURL(ctx context.Context, url *models.URL) error {
	const op = "cachestore.Cache.SetURL"

	entry := *url
	entry.AccessEvents = nil

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%s: failed to encode url: %w", op, err)
	}

	if err := c.rdb.Set(ctx, c.key(url.Code), data, c.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("%s: failed to cache url: %w", op, err)
	}

	return nil
}

func (c *Cache) key(code string) string {
	return fmt.Sprintf("%s:%s", c.cfg.KeyPrefix, code)
}

func (c *Cache) Close() error {
	return c.rdb.Close()
}
