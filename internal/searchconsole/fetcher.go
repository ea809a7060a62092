package searchconsole

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joshsymonds/gscreport/internal/rate"
	"github.com/joshsymonds/gscreport/internal/window"
)

// Row limits per request. Search Console caps a single request at 25,000 rows.
const (
	PageRowLimit    = 25000
	CountryRowLimit = 5000
	DateRowLimit    = 25000
)

const defaultDataState = "final"

// ErrInvalidQuery marks a request that cannot be sent as built.
var ErrInvalidQuery = errors.New("invalid search analytics query")

// Status describes how complete a fetch result is.
type Status int

const (
	// StatusOK means pagination ran until the source was exhausted.
	StatusOK Status = iota
	// StatusPartial means a transport error stopped pagination early.
	StatusPartial
)

func (s Status) String() string {
	if s == StatusPartial {
		return "partial"
	}
	return "ok"
}

// Request describes a dimensioned query over a date range.
type Request struct {
	Range      window.Range
	Type       DataType
	Dimensions []Dimension
	Filters    []Filter
	RowLimit   int
	DataState  string
}

// Result holds every row fetched for a request. When Status is
// StatusPartial, Cause holds the error that stopped pagination and Rows
// holds whatever was accumulated before it.
type Result struct {
	Dimensions []Dimension
	Rows       []Row
	Pages      int
	Status     Status
	Cause      error
}

// Index returns the key position of dim, or -1.
func (r Result) Index(dim Dimension) int {
	for i, d := range r.Dimensions {
		if d == dim {
			return i
		}
	}
	return -1
}

// Fetcher paginates search analytics queries. DataState applies to
// requests that leave it blank and defaults to "final".
type Fetcher struct {
	Client    Client
	Limiter   rate.Limiter
	Logger    *slog.Logger
	DataState string
}

// NewFetcher constructs a Fetcher with a stderr logger when none is given.
func NewFetcher(client Client, limiter rate.Limiter, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Fetcher{Client: client, Limiter: limiter, Logger: logger}
}

// Fetch retrieves all rows for req, requesting pages of RowLimit rows
// until a page comes back short or empty.
//
// Pagination is offset based. Rows that change upstream between page
// requests can be skipped or duplicated; nothing on this side can detect it.
// Transport errors are not retried: the rows fetched so far are returned
// with StatusPartial. Only a malformed request returns an error.
func (f *Fetcher) Fetch(ctx context.Context, site string, req Request) (Result, error) {
	if err := req.validate(site); err != nil {
		return Result{}, err
	}
	limit := req.RowLimit
	if limit <= 0 || limit > PageRowLimit {
		limit = PageRowLimit
	}
	dataState := req.DataState
	if dataState == "" {
		dataState = f.DataState
	}
	if dataState == "" {
		dataState = defaultDataState
	}

	res := Result{Dimensions: append([]Dimension(nil), req.Dimensions...)}
	startRow := 0
	for {
		page, err := f.page(ctx, site, Query{
			Start:      req.Range.Start,
			End:        req.Range.End,
			Type:       req.Type,
			Dimensions: req.Dimensions,
			Filters:    req.Filters,
			DataState:  dataState,
			RowLimit:   limit,
			StartRow:   startRow,
		})
		if err != nil {
			res.Status = StatusPartial
			res.Cause = err
			f.Logger.WarnContext(ctx, "search analytics pagination stopped",
				slog.String("site", site),
				slog.String("type", string(req.Type)),
				slog.String("range", req.Range.String()),
				slog.Int("start_row", startRow),
				slog.Int("rows", len(res.Rows)),
				slog.Any("error", err),
			)
			return res, nil
		}
		res.Pages++
		res.Rows = append(res.Rows, page...)
		if len(page) == 0 || len(page) < limit {
			break
		}
		startRow += len(page)
	}
	f.Logger.DebugContext(ctx, "search analytics fetched",
		slog.String("site", site),
		slog.String("type", string(req.Type)),
		slog.String("range", req.Range.String()),
		slog.Int("pages", res.Pages),
		slog.Int("rows", len(res.Rows)),
	)
	return res, nil
}

func (f *Fetcher) page(ctx context.Context, site string, q Query) ([]Row, error) {
	if f.Limiter != nil {
		if err := f.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit search analytics: %w", err)
		}
	}
	rows, err := f.Client.Query(ctx, site, q)
	if err != nil {
		return nil, fmt.Errorf("query search analytics: %w", err)
	}
	return rows, nil
}

func (r Request) validate(site string) error {
	if site == "" {
		return fmt.Errorf("%w: site is required", ErrInvalidQuery)
	}
	if r.Range.Start.IsZero() || r.Range.End.IsZero() {
		return fmt.Errorf("%w: date range is required", ErrInvalidQuery)
	}
	if r.Range.End.Before(r.Range.Start) {
		return fmt.Errorf("%w: range %s ends before it starts", ErrInvalidQuery, r.Range)
	}
	switch r.Type {
	case TypeWeb, TypeDiscover:
	default:
		return fmt.Errorf("%w: unknown data type %q", ErrInvalidQuery, r.Type)
	}
	for _, flt := range r.Filters {
		if flt.Dimension == "" || flt.Operator == "" || flt.Expression == "" {
			return fmt.Errorf("%w: incomplete filter %+v", ErrInvalidQuery, flt)
		}
	}
	return nil
}
