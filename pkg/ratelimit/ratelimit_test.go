package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_EnforcesMinDelay(t *testing.T) {
	l := NewLimiter(20 * time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	// First request is free; the next two wait.
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestLimiter_ZeroDelayNeverBlocks(t *testing.T) {
	l := NewLimiter(0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			_ = l.Wait(context.Background())
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("unlimited limiter blocked")
	}
}

func TestLimiter_WaitHonorsContext(t *testing.T) {
	l := NewLimiter(time.Hour)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx)
	assert.Error(t, err)
}

func TestRegistry_OneLimiterPerSource(t *testing.T) {
	r := NewRegistry(time.Millisecond)

	a := r.For("wikidata")
	b := r.For("wikipedia")
	assert.NotSame(t, a, b)
	assert.Same(t, a, r.For("wikidata"))
}
