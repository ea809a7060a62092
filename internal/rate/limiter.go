package rate

import (
	"context"
	"fmt"

	xrate "golang.org/x/time/rate"
)

// Limiter gates outbound API calls so we stay inside Google API quotas.
type Limiter interface {
	Wait(ctx context.Context) error
}

// TokenBucket releases a fixed number of requests per second.
type TokenBucket struct {
	lim *xrate.Limiter
}

// NewTokenBucket returns a limiter that releases rps tokens per second.
// The first call proceeds immediately.
func NewTokenBucket(rps int) *TokenBucket {
	if rps <= 0 {
		rps = 1
	}
	return &TokenBucket{lim: xrate.NewLimiter(xrate.Limit(rps), 1)}
}

// Wait blocks until a token is available or the context is canceled.
func (t *TokenBucket) Wait(ctx context.Context) error {
	if err := t.lim.Wait(ctx); err != nil {
		return fmt.Errorf("rate wait canceled: %w", err)
	}
	return nil
}

// FromRPS returns nil when rps disables limiting, so callers can skip waits.
func FromRPS(rps int) Limiter {
	if rps <= 0 {
		return nil
	}
	return NewTokenBucket(rps)
}

var _ Limiter = (*TokenBucket)(nil)
