package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_WaitUnlimited(t *testing.T) {
	r := NewRateLimiter(0, 0)
	for i := 0; i < 10; i++ {
		require.NoError(t, r.Wait(context.Background()))
	}
}

func TestRateLimiter_BackoffHonoursContext(t *testing.T) {
	r := NewRateLimiter(100, 10)
	r.RecordRateLimitError(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := r.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimiter_DefaultBackoff(t *testing.T) {
	r := NewRateLimiter(1, 1)
	r.RecordRateLimitError(0)
	assert.WithinDuration(t, time.Now().Add(DefaultRetryAfter), r.BackoffUntil(), 2*time.Second)
}

func TestRateLimiter_KeepsLongerBackoff(t *testing.T) {
	r := NewRateLimiter(1, 1)
	r.RecordRateLimitError(time.Hour)
	r.RecordRateLimitError(time.Second)
	assert.WithinDuration(t, time.Now().Add(time.Hour), r.BackoffUntil(), 2*time.Second)
}
