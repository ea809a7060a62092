// Package analytics reads GA4 session totals and lists the GA4 properties
// visible to the signed-in account.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joshsymonds/gscreport/internal/rate"
	"github.com/joshsymonds/gscreport/internal/window"
)

const propertyPrefix = "properties/"

// Property is a GA4 property with its parent account.
type Property struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Account     string `json:"account"`
}

// Client is the narrow GA4 Data and Admin surface required by gscreport.
type Client interface {
	SessionTotal(ctx context.Context, property string, r window.Range) (int64, error)
	ListProperties(ctx context.Context) ([]Property, error)
}

// Service wraps Client with rate limiting and logging.
type Service struct {
	Client  Client
	Limiter rate.Limiter
	Logger  *slog.Logger
}

// NewService constructs a Service with a stderr logger when none is given.
func NewService(client Client, limiter rate.Limiter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Service{Client: client, Limiter: limiter, Logger: logger}
}

// PropertyName normalizes "123" and "properties/123" to the resource name.
func PropertyName(id string) (string, error) {
	id = strings.TrimSpace(id)
	num := strings.TrimPrefix(id, propertyPrefix)
	if num == "" {
		return "", fmt.Errorf("empty GA4 property id")
	}
	for _, r := range num {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("invalid GA4 property id %q", id)
		}
	}
	return propertyPrefix + num, nil
}

// Sessions returns total sessions for property over r.
func (s *Service) Sessions(ctx context.Context, property string, r window.Range) (int64, error) {
	name, err := PropertyName(property)
	if err != nil {
		return 0, err
	}
	if err := s.wait(ctx); err != nil {
		return 0, err
	}
	total, err := s.Client.SessionTotal(ctx, name, r)
	if err != nil {
		return 0, fmt.Errorf("ga4 sessions %s %s: %w", name, r, err)
	}
	s.Logger.DebugContext(ctx, "ga4 sessions",
		slog.String("property", name),
		slog.String("range", r.String()),
		slog.Int64("sessions", total),
	)
	return total, nil
}

// Properties lists every GA4 property the account can read.
func (s *Service) Properties(ctx context.Context) ([]Property, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	props, err := s.Client.ListProperties(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ga4 properties: %w", err)
	}
	return props, nil
}

func (s *Service) wait(ctx context.Context) error {
	if s.Limiter == nil {
		return nil
	}
	if err := s.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit ga4: %w", err)
	}
	return nil
}
