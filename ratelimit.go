package xrplsale

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter is a client-side token bucket shared by every request of a Client.
type rateLimiter struct {
	limiter *rate.Limiter
}

func newRateLimiter(perMinute float64, burst int) *rateLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}

	return &rateLimiter{
		limiter: rate.NewLimiter(rate.Limit(perMinute/60.0), burst),
	}
}

// Wait blocks until a token is available or ctx is done. A nil limiter never blocks.
func (rl *rateLimiter) Wait(ctx context.Context) error {
	if rl == nil {
		return nil
	}
	return rl.limiter.Wait(ctx)
}

// wait blocks while the server asked the client to back off via Retry-After.
func (c *Client) wait(ctx context.Context) error {
	c.retryAfterMu.Lock()
	waitUntil := c.retryAfter
	c.retryAfterMu.Unlock()

	if !time.Now().Before(waitUntil) {
		return nil
	}

	return sleepContext(ctx, time.Until(waitUntil))
}

// holdUntil moves the shared back-off deadline forward; it never moves it back.
func (c *Client) holdUntil(t time.Time) {
	c.retryAfterMu.Lock()
	defer c.retryAfterMu.Unlock()

	if t.After(c.retryAfter) {
		c.retryAfter = t
	}
}
