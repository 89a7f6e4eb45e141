package fetch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestController_BoundsInFlight(t *testing.T) {
	ctx := context.Background()
	c := NewController(Config{MaxInFlight: 4})

	var inFlight, peak atomic.Int64
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < 64; i++ {
		g.Go(func() error {
			if err := c.Acquire(ctx); err != nil {
				return err
			}
			defer c.Release()

			n := inFlight.Add(1)
			mu.Lock()
			if n > peak.Load() {
				peak.Store(n)
			}
			mu.Unlock()
			inFlight.Add(-1)
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.LessOrEqual(t, peak.Load(), int64(4))
}

func TestController_TryAcquire(t *testing.T) {
	ctx := context.Background()
	c := NewController(Config{MaxInFlight: 1})

	require.NoError(t, c.Acquire(ctx))
	assert.False(t, c.TryAcquire())
	c.Release()
	assert.True(t, c.TryAcquire())
	c.Release()
}

func TestController_CancelledContext(t *testing.T) {
	c := NewController(Config{MaxInFlight: 1})
	require.NoError(t, c.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, c.Acquire(ctx))
	c.Release()
}

func TestController_NilIsUnlimited(t *testing.T) {
	var c *Controller
	require.NoError(t, c.Acquire(context.Background()))
	assert.True(t, c.TryAcquire())
	c.Release()
}

func TestController_DefaultsToOne(t *testing.T) {
	c := NewController(Config{})
	assert.Equal(t, int64(1), c.MaxInFlight())
}
