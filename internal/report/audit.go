package report

import (
	"sort"

	sc "github.com/joshsymonds/gscreport/internal/searchconsole"
	"github.com/joshsymonds/gscreport/internal/window"
)

// PeriodMetrics summarizes one audit period.
type PeriodMetrics struct {
	Period   window.Period
	Totals   Totals
	Position float64
	// Sessions is nil when no GA4 property was queried.
	Sessions *int64
}

// SummarizePeriod builds PeriodMetrics from a period fetch.
func SummarizePeriod(p window.Period, res sc.Result) PeriodMetrics {
	return PeriodMetrics{Period: p, Totals: Sum(res), Position: WeightedPosition(res)}
}

// PeriodTable renders audit periods newest first. var_clics compares each
// period with the one right after it in the slice (the next older period)
// and is blank when that period had no clicks.
func PeriodTable(name string, periods []PeriodMetrics) Table {
	withSessions := false
	for _, p := range periods {
		if p.Sessions != nil {
			withSessions = true
			break
		}
	}
	t := Table{
		Name: name,
		Columns: []string{
			"periodo", "inicio", "fin", ColClicks, ColImpressions, ColCTR, ColPosition, "var_clics",
		},
	}
	if withSessions {
		t.Columns = append(t.Columns, "sesiones")
	}
	for i, p := range periods {
		var change any
		if i+1 < len(periods) && periods[i+1].Totals.Clicks > 0 {
			prev := float64(periods[i+1].Totals.Clicks)
			change = (float64(p.Totals.Clicks) - prev) / prev
		}
		row := []any{
			p.Period.Label, p.Period.Start, p.Period.End,
			p.Totals.Clicks, p.Totals.Impressions, p.Totals.CTR(), p.Position, change,
		}
		if withSessions {
			row = append(row, p.Sessions)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Mover compares a page's clicks across two periods.
type Mover struct {
	Page     string
	Current  int64
	Previous int64
}

// Delta is the click difference between periods.
func (m Mover) Delta() int64 { return m.Current - m.Previous }

// TopMovers lists the topN pages by current clicks with their previous
// period clicks. Ties break on page URL.
func TopMovers(current, previous sc.Result, topN int) []Mover {
	prev := make(map[string]int64)
	for _, t := range GroupBy(previous, sc.DimPage) {
		prev[t.Key] = t.Clicks
	}
	cur := GroupBy(current, sc.DimPage)
	movers := make([]Mover, 0, len(cur))
	for _, t := range cur {
		movers = append(movers, Mover{Page: t.Key, Current: t.Clicks, Previous: prev[t.Key]})
	}
	sort.Slice(movers, func(i, j int) bool {
		if movers[i].Current == movers[j].Current {
			return movers[i].Page < movers[j].Page
		}
		return movers[i].Current > movers[j].Current
	})
	if topN > 0 && topN < len(movers) {
		movers = movers[:topN]
	}
	return movers
}

// MoversTable renders TopMovers output.
func MoversTable(name string, movers []Mover) Table {
	t := Table{
		Name:    name,
		Columns: []string{ColPage, ColSection, "clics_actual", "clics_anterior", "diferencia"},
	}
	for _, m := range movers {
		t.Rows = append(t.Rows, []any{m.Page, Section(m.Page), m.Current, m.Previous, m.Delta()})
	}
	return t
}
