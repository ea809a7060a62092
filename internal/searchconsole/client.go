package searchconsole

import "context"

// Client is the narrow Search Console surface required by gscreport.
type Client interface {
	Query(ctx context.Context, site string, q Query) ([]Row, error)
	ListSites(ctx context.Context) ([]Site, error)
}
