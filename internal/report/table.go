// Package report shapes search analytics rows into the tables written to
// spreadsheet tabs.
package report

import (
	"math"
	"time"

	"github.com/joshsymonds/gscreport/internal/window"
)

// Table is a rectangular report destined for one spreadsheet tab. Rows keep
// source order unless a builder sorts them.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// Len returns the number of data rows.
func (t Table) Len() int { return len(t.Rows) }

// Empty reports whether the table has no data rows.
func (t Table) Empty() bool { return len(t.Rows) == 0 }

// Values returns the header followed by every row with cells coerced for
// writing. The header is omitted when the table has no columns.
func (t Table) Values() [][]any {
	out := make([][]any, 0, len(t.Rows)+1)
	if len(t.Columns) > 0 {
		header := make([]any, len(t.Columns))
		for i, c := range t.Columns {
			header[i] = c
		}
		out = append(out, header)
	}
	for _, row := range t.Rows {
		cells := make([]any, len(row))
		for i, v := range row {
			cells[i] = Cell(v)
		}
		out = append(out, cells)
	}
	return out
}

// Cell coerces a value into something a spreadsheet accepts. Missing
// values become empty strings so nothing null is persisted.
func Cell(v any) any {
	switch val := v.(type) {
	case nil:
		return ""
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return ""
		}
		return val
	case *int64:
		if val == nil {
			return ""
		}
		return *val
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val.Format(window.DateLayout)
	default:
		return val
	}
}
