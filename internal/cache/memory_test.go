package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()

	t.Run("get returns stored value", func(t *testing.T) {
		c := NewMemoryCache(0)
		defer c.Close()

		require.NoError(t, c.Set(ctx, "k", []byte(`{"title":"Mug"}`), time.Minute))

		got, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, `{"title":"Mug"}`, string(got))
	})

	t.Run("missing key is a miss", func(t *testing.T) {
		c := NewMemoryCache(0)
		defer c.Close()

		_, err := c.Get(ctx, "absent")
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("expired entry is a miss and gets swept", func(t *testing.T) {
		c := NewMemoryCache(0)
		defer c.Close()

		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		c.now = func() time.Time { return now }

		require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
		now = now.Add(2 * time.Minute)

		_, err := c.Get(ctx, "k")
		assert.ErrorIs(t, err, ErrCacheMiss)

		c.sweep()
		assert.Equal(t, 0, c.Size())
	})

	t.Run("stored bytes are not aliased", func(t *testing.T) {
		c := NewMemoryCache(0)
		defer c.Close()

		value := []byte("abc")
		require.NoError(t, c.Set(ctx, "k", value, time.Minute))
		value[0] = 'z'

		got, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "abc", string(got))
	})

	t.Run("delete removes entry", func(t *testing.T) {
		c := NewMemoryCache(0)
		defer c.Close()

		require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
		require.NoError(t, c.Delete(ctx, "k"))

		_, err := c.Get(ctx, "k")
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		c := NewMemoryCache(time.Hour)
		assert.NoError(t, c.Close())
		assert.NoError(t, c.Close())
	})
}

func TestMemoryCacheConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Set(ctx, "shared", []byte("v"), time.Minute)
			_, _ = c.Get(ctx, "shared")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, c.Size())
}
