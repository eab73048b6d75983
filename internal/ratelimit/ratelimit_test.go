package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedLimiterAllow(t *testing.T) {
	tests := []struct {
		name      string
		perMinute float64
		burst     int
		attempts  int
		allowed   int
	}{
		{name: "burst then blocked", perMinute: 60, burst: 3, attempts: 5, allowed: 3},
		{name: "single token", perMinute: 1, burst: 1, attempts: 3, allowed: 1},
		{name: "disabled", perMinute: 0, burst: 1, attempts: 50, allowed: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := New(tt.perMinute, tt.burst, time.Minute)
			now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			k.now = func() time.Time { return now }

			allowed := 0
			for i := 0; i < tt.attempts; i++ {
				if k.Allow("10.0.0.1") {
					allowed++
				}
			}
			assert.Equal(t, tt.allowed, allowed)
		})
	}
}

func TestKeyedLimiterKeysAreIndependent(t *testing.T) {
	k := New(1, 1, time.Minute)

	assert.True(t, k.Allow("a"))
	assert.False(t, k.Allow("a"))
	assert.True(t, k.Allow("b"))
	assert.Equal(t, 2, k.Len())
}

func TestKeyedLimiterRefills(t *testing.T) {
	k := New(60, 1, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	k.now = func() time.Time { return now }

	require.True(t, k.Allow("ip"))
	require.False(t, k.Allow("ip"))

	now = now.Add(time.Second)
	assert.True(t, k.Allow("ip"))
}

func TestKeyedLimiterPrune(t *testing.T) {
	k := New(60, 1, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	k.now = func() time.Time { return now }

	k.Allow("old")
	now = now.Add(2 * time.Minute)
	k.Allow("fresh")

	assert.Equal(t, 1, k.Prune())
	assert.Equal(t, 1, k.Len())
}

func TestKeyedLimiterWaitHonoursContext(t *testing.T) {
	k := New(1, 1, 0)
	require.NoError(t, k.Wait(context.Background(), "host"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Error(t, k.Wait(ctx, "host"))
}
