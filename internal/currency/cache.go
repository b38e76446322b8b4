package currency

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Cached wraps a Converter with a short-lived cache and a static fallback.
// Concurrent refreshes collapse into a single upstream call via singleflight.
// A failed refresh yields the fallback rate rather than an error: intake must
// not fail because the rate feed is down.
type Cached struct {
	src      Converter
	ttl      time.Duration
	fallback decimal.Decimal
	now      func() time.Time

	group singleflight.Group

	mu        sync.Mutex
	rate      decimal.Decimal
	fetchedAt time.Time
}

// NewCached creates a Cached converter around src.
func NewCached(src Converter, ttl time.Duration, fallback decimal.Decimal) *Cached {
	return &Cached{
		src:      src,
		ttl:      ttl,
		fallback: fallback,
		now:      time.Now,
	}
}

// Rate returns the cached rate when fresh, refreshing it otherwise. It never
// returns an error: refresh failures are logged and the fallback is used.
func (c *Cached) Rate(ctx context.Context) (decimal.Decimal, error) {
	c.mu.Lock()
	if !c.fetchedAt.IsZero() && c.now().Sub(c.fetchedAt) < c.ttl {
		rate := c.rate
		c.mu.Unlock()
		return rate, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do("rate", func() (any, error) {
		rate, err := c.src.Rate(ctx)
		if err != nil {
			return decimal.Zero, err
		}
		c.mu.Lock()
		c.rate = rate
		c.fetchedAt = c.now()
		c.mu.Unlock()
		return rate, nil
	})
	if err != nil {
		zctx.From(ctx).Warn("Rate refresh failed, using fallback",
			zap.Error(err),
			zap.String("fallback", c.fallback.String()),
		)
		return c.fallback, nil
	}
	return v.(decimal.Decimal), nil
}
