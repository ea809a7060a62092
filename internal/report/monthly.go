package report

import (
	"time"

	sc "github.com/joshsymonds/gscreport/internal/searchconsole"
)

// MonthResult tags one month's fetch with the month start date.
type MonthResult struct {
	Month  time.Time
	Result sc.Result
}

// MonthlyPagesTable concatenates per-month page rows, each tagged with the
// first day of its month.
func MonthlyPagesTable(name string, months []MonthResult) Table {
	t := Table{
		Name: name,
		Columns: []string{
			ColMonth, ColPage, ColClicks, ColImpressions, ColCTR, ColPosition, ColSection,
		},
	}
	for _, m := range months {
		idx := m.Result.Index(sc.DimPage)
		for _, row := range m.Result.Rows {
			page := keyAt(row, idx)
			t.Rows = append(t.Rows, []any{
				m.Month, page, row.Clicks, row.Impressions, row.CTR, row.Position, Section(page),
			})
		}
	}
	return t
}

// MonthlyTotalsTable rolls each month up into a single row with a
// recomputed CTR. Months without rows still appear with zeros.
func MonthlyTotalsTable(name string, months []MonthResult) Table {
	t := Table{Name: name, Columns: []string{ColMonth, ColClicks, ColImpressions, ColCTR}}
	for _, m := range months {
		total := Sum(m.Result)
		t.Rows = append(t.Rows, []any{m.Month, total.Clicks, total.Impressions, total.CTR()})
	}
	return t
}
