package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joshsymonds/gscreport/internal/report"
	sc "github.com/joshsymonds/gscreport/internal/searchconsole"
	"github.com/joshsymonds/gscreport/internal/window"
)

// Evergreen reports page performance month by month over the last 16 full
// months. Each month is its own query so per-page rows stay month scoped.
func (s *Service) Evergreen(ctx context.Context, rc RunContext, p EvergreenParams) (RunReport, error) {
	if err := p.Validate(); err != nil {
		return RunReport{}, err
	}
	filters, err := p.filters()
	if err != nil {
		return RunReport{}, err
	}
	win, err := window.Evergreen(s.now(), p.LagDays)
	if err != nil {
		return RunReport{}, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	s.Logger.InfoContext(ctx, "evergreen window",
		slog.String("range", win.Range.String()),
		slog.Int("months", len(win.Months)),
	)

	var steps []fetchStep
	for _, t := range p.Types {
		for _, m := range win.Months {
			steps = append(steps, fetchStep{
				Tab: fmt.Sprintf("Mensual %s (%s)", t.Label(), m.Start.Format("2006-01")),
				Request: sc.Request{
					Range: m, Type: t, Dimensions: []sc.Dimension{sc.DimPage},
					Filters: filters, RowLimit: sc.PageRowLimit,
				},
			})
		}
	}

	r, err := s.start(ctx, rc, KindEvergreen, p.Site,
		title("Evergreen", p.Site, win.Reference.Format(window.DateLayout)))
	if err != nil {
		return RunReport{}, err
	}
	results, err := s.fetchAll(ctx, p.Site, steps)
	if err != nil {
		return r.finish(ctx, err)
	}
	for i, res := range results {
		r.noteResult(ctx, steps[i].Tab, res)
	}

	var tables []report.Table
	for i, t := range p.Types {
		months := make([]report.MonthResult, len(win.Months))
		for j, m := range win.Months {
			months[j] = report.MonthResult{Month: m.Start, Result: results[i*len(win.Months)+j]}
		}
		tables = append(tables,
			report.MonthlyPagesTable("Mensual "+t.Label(), months),
			monthlyTotals("Totales "+t.Label(), months),
		)
	}

	settings := append(commonSettings(KindEvergreen, p.Common, win.Reference),
		report.Setting{Key: "Meses", Value: len(win.Months)},
		report.Setting{Key: "Inicio", Value: win.Range.Start},
		report.Setting{Key: "Fin", Value: win.Range.End},
	)
	return r.finish(ctx, r.write(ctx, tables, settings))
}

// monthlyTotals leaves the table empty when no month returned rows, so a
// run without data is not counted as output.
func monthlyTotals(name string, months []report.MonthResult) report.Table {
	for _, m := range months {
		if len(m.Result.Rows) > 0 {
			return report.MonthlyTotalsTable(name, months)
		}
	}
	return report.MonthlyTotalsTable(name, nil)
}
