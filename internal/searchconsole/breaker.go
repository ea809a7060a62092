package searchconsole

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

const (
	breakerName        = "search-console"
	breakerMinRequests = 5
	breakerTripRatio   = 0.6
)

// BreakerClient stops calling Search Console after repeated failures. An
// open circuit surfaces as a regular error, which the Fetcher turns into a
// partial result.
type BreakerClient struct {
	next Client
	cb   *gobreaker.CircuitBreaker[[]Row]
}

// NewBreakerClient wraps next with a circuit breaker.
func NewBreakerClient(next Client, logger *slog.Logger) *BreakerClient {
	cb := gobreaker.NewCircuitBreaker[[]Row](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < breakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= breakerTripRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.Warn("circuit breaker state change",
					slog.String("name", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
			}
		},
	})
	return &BreakerClient{next: next, cb: cb}
}

// Query runs q through the breaker.
func (b *BreakerClient) Query(ctx context.Context, site string, q Query) ([]Row, error) {
	rows, err := b.cb.Execute(func() ([]Row, error) {
		return b.next.Query(ctx, site, q)
	})
	if err != nil {
		return nil, fmt.Errorf("search console breaker: %w", err)
	}
	return rows, nil
}

// ListSites bypasses the breaker; it is called once per process.
func (b *BreakerClient) ListSites(ctx context.Context) ([]Site, error) {
	return b.next.ListSites(ctx)
}

var _ Client = (*BreakerClient)(nil)
