package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joshsymonds/gscreport/internal/report"
	sc "github.com/joshsymonds/gscreport/internal/searchconsole"
	"github.com/joshsymonds/gscreport/internal/window"
)

// Daily phases of a core update.
const (
	PhasePre    = "pre"
	PhaseUpdate = "update"
	PhasePost   = "post"
)

// steps per data type, in tab order.
const coreUpdateStepsPerType = 6

// CoreUpdate compares the windows before and after a core update. For each
// data type it writes page tables for both windows, a merged country table,
// a daily table tagged with the update phase and a totals summary.
func (s *Service) CoreUpdate(ctx context.Context, rc RunContext, p CoreUpdateParams) (RunReport, error) {
	if err := p.Validate(); err != nil {
		return RunReport{}, err
	}
	filters, err := p.filters()
	if err != nil {
		return RunReport{}, err
	}
	win, err := window.CoreUpdate(window.CoreUpdateInput{
		Today:   s.now(),
		LagDays: p.LagDays,
		Start:   p.Start,
		Ended:   p.Ended,
		End:     p.End,
	})
	if err != nil {
		return RunReport{}, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	s.Logger.InfoContext(ctx, "core update windows",
		slog.String("pre", win.Pre.String()),
		slog.String("post", win.Post.String()),
		slog.Int("span", win.Span),
	)

	steps := coreUpdateSteps(p.Types, win, filters)
	r, err := s.start(ctx, rc, KindCoreUpdate, p.Site,
		title("Core Update", p.Name, p.Site, win.Reference.Format(window.DateLayout)))
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

	phase := func(date string) string {
		d, parseErr := window.Parse(date)
		switch {
		case parseErr != nil:
			return ""
		case win.Pre.Contains(d):
			return PhasePre
		case win.Post.Contains(d):
			return PhasePost
		default:
			return PhaseUpdate
		}
	}
	var tables []report.Table
	for i, t := range p.Types {
		base := i * coreUpdateStepsPerType
		label := t.Label()
		pre, post := results[base], results[base+1]
		countriesPre, countriesPost := results[base+2], results[base+3]
		daily := results[base+4]
		tables = append(tables,
			report.PagesTable("Pre "+label, pre),
			report.PagesTable("Post "+label, post),
			report.CountryTable("Países "+label, report.MergeCountries(
				report.GroupBy(countriesPre, sc.DimCountry),
				report.GroupBy(countriesPost, sc.DimCountry),
			)),
			report.DateTable("Diario "+label, report.DailyTotals(daily), phase),
			summaryTable("Resumen "+label, win, pre, post, results[base+5]),
		)
	}

	settings := append(commonSettings(KindCoreUpdate, p.Common, win.Reference),
		report.Setting{Key: "Core update", Value: p.Name},
		report.Setting{Key: "Inicio del update", Value: window.Truncate(p.Start)},
		report.Setting{Key: "Update finalizado", Value: yesNo(p.Ended)},
		report.Setting{Key: "Fin del update", Value: endSetting(p)},
		report.Setting{Key: "Días por ventana", Value: win.Span},
		report.Setting{Key: "Ventana pre", Value: win.Pre.String()},
		report.Setting{Key: "Ventana post", Value: win.Post.String()},
	)
	return r.finish(ctx, r.write(ctx, tables, settings))
}

// coreUpdateSteps lists, per type: pre pages, post pages, pre countries,
// post countries, daily totals over both windows and the undimensioned
// totals used for the summary tab.
func coreUpdateSteps(types []sc.DataType, win window.CoreUpdateWindows, filters []sc.Filter) []fetchStep {
	countryFilters := sc.Without(filters, sc.DimCountry)
	steps := make([]fetchStep, 0, len(types)*coreUpdateStepsPerType)
	for _, t := range types {
		label := t.Label()
		steps = append(steps,
			fetchStep{Tab: "Pre " + label, Request: sc.Request{
				Range: win.Pre, Type: t, Dimensions: []sc.Dimension{sc.DimPage},
				Filters: filters, RowLimit: sc.PageRowLimit,
			}},
			fetchStep{Tab: "Post " + label, Request: sc.Request{
				Range: win.Post, Type: t, Dimensions: []sc.Dimension{sc.DimPage},
				Filters: filters, RowLimit: sc.PageRowLimit,
			}},
			fetchStep{Tab: "Países " + label + " (pre)", Request: sc.Request{
				Range: win.Pre, Type: t, Dimensions: []sc.Dimension{sc.DimCountry},
				Filters: countryFilters, RowLimit: sc.CountryRowLimit,
			}},
			fetchStep{Tab: "Países " + label + " (post)", Request: sc.Request{
				Range: win.Post, Type: t, Dimensions: []sc.Dimension{sc.DimCountry},
				Filters: countryFilters, RowLimit: sc.CountryRowLimit,
			}},
			fetchStep{Tab: "Diario " + label, Request: sc.Request{
				Range: win.Full(), Type: t, Dimensions: []sc.Dimension{sc.DimDate},
				Filters: filters, RowLimit: sc.DateRowLimit,
			}},
			fetchStep{Tab: "Resumen " + label, Request: sc.Request{
				Range: win.Full(), Type: t, Filters: filters, RowLimit: sc.DateRowLimit,
			}},
		)
	}
	return steps
}

// summaryTable lists the pre, post and overall totals. full is the
// undimensioned total over both windows. With no rows anywhere the table
// is left empty.
func summaryTable(name string, win window.CoreUpdateWindows, pre, post, full sc.Result) report.Table {
	t := report.Table{
		Name: name,
		Columns: []string{
			report.ColPhase, "inicio", "fin",
			report.ColClicks, report.ColImpressions, report.ColCTR, report.ColPosition,
		},
	}
	if len(pre.Rows)+len(post.Rows)+len(full.Rows) == 0 {
		return t
	}
	add := func(phase string, r window.Range, res sc.Result) {
		total := report.Sum(res)
		t.Rows = append(t.Rows, []any{
			phase, r.Start, r.End,
			total.Clicks, total.Impressions, total.CTR(), report.WeightedPosition(res),
		})
	}
	add(PhasePre, win.Pre, pre)
	add(PhasePost, win.Post, post)
	add("total", win.Full(), full)
	return t
}

func endSetting(p CoreUpdateParams) any {
	if !p.Ended {
		return "En curso"
	}
	return window.Truncate(p.End)
}

func yesNo(v bool) string {
	if v {
		return "Sí"
	}
	return "No"
}
