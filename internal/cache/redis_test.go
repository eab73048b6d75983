package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *RedisCache {
	t.Helper()

	url := os.Getenv("CARTSMITH_TEST_REDIS_URL")
	if url == "" {
		t.Skip("CARTSMITH_TEST_REDIS_URL not set")
	}

	c, err := NewRedisCache(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRedisCache(t *testing.T) {
	c := setupTestRedis(t)
	ctx := context.Background()
	key := "test|" + time.Now().Format(time.RFC3339Nano)

	_, err := c.Get(ctx, key)
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, key, []byte(`{"title":"Mug","price":"299"}`), time.Minute))

	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Mug","price":"299"}`, string(got))

	require.NoError(t, c.Delete(ctx, key))
	_, err = c.Get(ctx, key)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestNewRedisCacheBadURL(t *testing.T) {
	_, err := NewRedisCache(context.Background(), "not-a-url")
	assert.Error(t, err)
}
