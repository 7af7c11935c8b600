package cachestore

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mkravets/shortener/internal/config"
	"github.com/mkravets/shortener/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	cfg := config.Redis{
		Addr:      mr.Addr(),
		TTL:       time.Minute,
		KeyPrefix: "url",
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cache, err := New(context.Background(), logger, cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		cache.Close()
	})

	return cache, mr
}

func TestCache_New(t *testing.T) {
	t.Run("missing address", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))

		cache, err := New(context.Background(), logger, config.Redis{})

		assert.Error(t, err)
		assert.Nil(t, cache)
	})
}

func TestCache_GetURL(t *testing.T) {
	t.Run("miss", func(t *testing.T) {
		cache, _ := setupCache(t)

		url, err := cache.GetURL(context.Background(), "abc123")

		assert.Error(t, err)
		assert.ErrorIs(t, err, ErrCacheMiss)
		assert.Nil(t, url)
	})

	t.Run("malformed entry treated as miss", func(t *testing.T) {
		cache, mr := setupCache(t)

		require.NoError(t, mr.Set("url:abc123", "not json"))

		url, err := cache.GetURL(context.Background(), "abc123")

		assert.Error(t, err)
		assert.ErrorIs(t, err, ErrCacheMiss)
		assert.Nil(t, url)
	})

	t.Run("round trip", func(t *testing.T) {
		cache, _ := setupCache(t)

		expiresAt := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
		stored := &models.URL{
			ID:          1,
			Code:        "abc123",
			OriginalURL: "https://example.com",
			AccessCount: 3,
			ExpiresAt:   &expiresAt,
		}

		require.NoError(t, cache.SetURL(context.Background(), stored))

		url, err := cache.GetURL(context.Background(), "abc123")

		assert.NoError(t, err)
		require.NotNil(t, url)
		assert.Equal(t, stored.ID, url.ID)
		assert.Equal(t, stored.Code, url.Code)
		assert.Equal(t, stored.OriginalURL, url.OriginalURL)
		assert.Equal(t, stored.AccessCount, url.AccessCount)
		require.NotNil(t, url.ExpiresAt)
		assert.True(t, expiresAt.Equal(*url.ExpiresAt))
	})
}

func TestCache_SetURL(t *testing.T) {
	t.Run("entry expires after the configured ttl", func(t *testing.T) {
		cache, mr := setupCache(t)

		require.NoError(t, cache.SetURL(context.Background(), &models.URL{Code: "abc123"}))
		assert.Equal(t, time.Minute, mr.TTL("url:abc123"))

		mr.FastForward(2 * time.Minute)

		url, err := cache.GetURL(context.Background(), "abc123")

		assert.ErrorIs(t, err, ErrCacheMiss)
		assert.Nil(t, url)
	})

	t.Run("access events are not cached", func(t *testing.T) {
		cache, _ := setupCache(t)

		require.NoError(t, cache.SetURL(context.Background(), &models.URL{
			Code:         "abc123",
			OriginalURL:  "https://example.com",
			AccessEvents: []models.AccessEvent{{ID: 1, URLID: 1}},
		}))

		url, err := cache.GetURL(context.Background(), "abc123")

		assert.NoError(t, err)
		require.NotNil(t, url)
		assert.Empty(t, url.AccessEvents)
	})
}
