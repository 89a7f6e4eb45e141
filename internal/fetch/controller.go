package fetch

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds fetch limits for a build.
type Config struct {
	// MaxInFlight is the maximum number of concurrent sidecar fetches.
	// If 0, defaults to 1.
	MaxInFlight int64

	// RequestsPerSec is the maximum request rate against the object
	// store. If 0, unlimited.
	RequestsPerSec float64
}

// Controller bounds the fetch traffic an index build puts on the
// archive bucket. A weighted semaphore caps in-flight requests and an
// optional rate limiter smooths the request rate, since public
// open-data buckets throttle aggressive listers.
type Controller struct {
	cfg Config

	sem     *semaphore.Weighted
	limiter *rate.Limiter // nil if unlimited
}

// NewController creates a new fetch controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 1
	}

	c := &Controller{
		cfg: cfg,
		sem: semaphore.NewWeighted(cfg.MaxInFlight),
	}

	if cfg.RequestsPerSec > 0 {
		burst := int(cfg.RequestsPerSec)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), burst)
	}

	return c
}

// Acquire reserves a fetch slot, waiting on the rate limiter first.
// Blocks until a slot is free or the context is cancelled.
func (c *Controller) Acquire(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return c.sem.Acquire(ctx, 1)
}

// TryAcquire reserves a fetch slot without blocking.
func (c *Controller) TryAcquire() bool {
	if c == nil {
		return true
	}
	if c.limiter != nil && !c.limiter.AllowN(time.Now(), 1) {
		return false
	}
	if !c.sem.TryAcquire(1) {
		return false
	}
	return true
}

// Release releases a fetch slot.
func (c *Controller) Release() {
	if c == nil {
		return
	}
	c.sem.Release(1)
}

// MaxInFlight returns the configured concurrency cap.
func (c *Controller) MaxInFlight() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MaxInFlight
}
