package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/codewarden/internal/config"
)

func TestTryAcquire_RespectsBurst(t *testing.T) {
	l := New(config.RateLimitConfig{RequestsPerMinute: 60, Burst: 3})

	allowed := 0
	for i := 0; i < 5; i++ {
		if l.TryAcquire() {
			allowed++
		}
	}

	assert.Equal(t, 3, allowed)
}

func TestAcquire_BlocksUntilPermitAvailable(t *testing.T) {
	l := New(config.RateLimitConfig{RequestsPerMinute: 600, Burst: 1})
	require.True(t, l.TryAcquire())

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := l.Acquire(ctx)
	require.NoError(t, err)
	assert.Greater(t, time.Since(start), time.Millisecond)
}
