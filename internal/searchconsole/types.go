package searchconsole

import (
	"time"
)

// DataType selects the Search Console surface being queried.
type DataType string

// Supported surfaces.
const (
	TypeWeb      DataType = "web"
	TypeDiscover DataType = "discover"
)

// Label is the display name used for tab titles.
func (t DataType) Label() string {
	switch t {
	case TypeWeb:
		return "Search"
	case TypeDiscover:
		return "Discover"
	default:
		return string(t)
	}
}

// Dimension groups search analytics rows.
type Dimension string

const (
	DimPage    Dimension = "page"
	DimCountry Dimension = "country"
	DimDate    Dimension = "date"
)

// Operator compares a dimension against a filter expression.
type Operator string

const (
	OpContains Operator = "contains"
	OpEquals   Operator = "equals"
)

// Filter is a single dimension predicate; filters in a query are ANDed.
type Filter struct {
	Dimension  Dimension `json:"dimension"`
	Operator   Operator  `json:"operator"`
	Expression string    `json:"expression"`
}

// Query is one page request against the search analytics endpoint.
type Query struct {
	Start      time.Time
	End        time.Time
	Type       DataType
	Dimensions []Dimension
	Filters    []Filter
	DataState  string
	RowLimit   int
	StartRow   int
}

// Row is a single search analytics observation. Keys follow the order of
// the query dimensions. Position is zero when the source omits it.
type Row struct {
	Keys        []string `json:"keys"`
	Clicks      int64    `json:"clicks"`
	Impressions int64    `json:"impressions"`
	CTR         float64  `json:"ctr"`
	Position    float64  `json:"position"`
}

// Site is a verified Search Console property.
type Site struct {
	URL        string `json:"url"`
	Permission string `json:"permission"`
}
