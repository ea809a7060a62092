package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joshsymonds/gscreport/internal/report"
	sc "github.com/joshsymonds/gscreport/internal/searchconsole"
	"github.com/joshsymonds/gscreport/internal/summary"
	"github.com/joshsymonds/gscreport/internal/window"
)

// Audit compares the current period with the periods before it. For each
// data type it writes a per-period totals table and the top pages of the
// current period against the previous one. GA4 sessions and a model
// written summary are added when configured.
func (s *Service) Audit(ctx context.Context, rc RunContext, p AuditParams) (RunReport, error) {
	if err := p.Validate(); err != nil {
		return RunReport{}, err
	}
	filters, err := p.filters()
	if err != nil {
		return RunReport{}, err
	}
	today := s.now()
	periods, err := window.Audit(window.AuditInput{
		Today:       today,
		LagDays:     p.LagDays,
		Mode:        p.Mode,
		CustomDays:  p.CustomDays,
		PeriodsBack: p.PeriodsBack,
	})
	if err != nil {
		return RunReport{}, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	current := periods[0]
	s.Logger.InfoContext(ctx, "audit periods",
		slog.String("mode", string(p.Mode)),
		slog.String("current", current.Range.String()),
		slog.Int("periods", len(periods)),
	)

	var steps []fetchStep
	for _, t := range p.Types {
		for _, period := range periods {
			steps = append(steps, fetchStep{
				Tab: fmt.Sprintf("Periodos %s (%s)", t.Label(), period.Label),
				Request: sc.Request{
					Range: period.Range, Type: t, Dimensions: []sc.Dimension{sc.DimPage},
					Filters: filters, RowLimit: sc.PageRowLimit,
				},
			})
		}
	}

	ref, err := window.Reference(today, p.LagDays)
	if err != nil {
		return RunReport{}, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	r, err := s.start(ctx, rc, KindAudit, p.Site,
		title("Auditoría", string(p.Mode), p.Site, ref.Format(window.DateLayout)))
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
	sessions := r.sessions(ctx, p.GA4Property, periods)

	var (
		tables   []report.Table
		sections []summary.Section
		haveData bool
	)
	for i, t := range p.Types {
		base := i * len(periods)
		metrics := make([]report.PeriodMetrics, len(periods))
		for j, period := range periods {
			metrics[j] = report.SummarizePeriod(period, results[base+j])
			metrics[j].Sessions = sessions[j]
		}
		movers := report.TopMovers(results[base], results[base+1], p.topN())
		if allEmpty(results[base:base+len(periods)]) && !anySessions(sessions) {
			metrics = nil
		}
		if len(metrics) > 0 {
			haveData = true
		}
		tables = append(tables,
			report.PeriodTable("Periodos "+t.Label(), metrics),
			report.MoversTable("Top páginas "+t.Label(), movers),
		)
		sections = append(sections, summary.Section{Label: t.Label(), Periods: metrics, Movers: movers})
	}
	switch {
	case !p.Summarize:
	case !haveData:
		r.notice(ctx, Notice{Tab: summary.TabName, Level: NoticeEmpty, Message: "sin datos que resumir"})
	default:
		if t, ok := r.summarize(ctx, summary.Input{Site: p.Site, Sections: sections}); ok {
			tables = append(tables, t)
		}
	}

	labels := make([]string, len(periods))
	for i, period := range periods {
		labels[i] = period.Label + ": " + period.Range.String()
	}
	settings := append(commonSettings(KindAudit, p.Common, ref),
		report.Setting{Key: "Modo", Value: string(p.Mode)},
		report.Setting{Key: "Días por periodo", Value: current.Range.Days()},
		report.Setting{Key: "Periodos anteriores", Value: p.PeriodsBack},
		report.Setting{Key: "Periodos", Value: strings.Join(labels, "; ")},
		report.Setting{Key: "Top páginas", Value: p.topN()},
		report.Setting{Key: "Propiedad GA4", Value: p.GA4Property},
		report.Setting{Key: "Resumen IA", Value: yesNo(p.Summarize)},
	)
	return r.finish(ctx, r.write(ctx, tables, settings))
}

// sessions returns one slot per period. Slots stay nil when no property
// is configured or the lookup fails.
func (r *run) sessions(ctx context.Context, property string, periods []window.Period) []*int64 {
	out := make([]*int64, len(periods))
	if strings.TrimSpace(property) == "" {
		return out
	}
	if r.svc.Sessions == nil {
		r.notice(ctx, Notice{Level: NoticeSkipped, Message: "GA4 no configurado; se omiten las sesiones"})
		return out
	}
	for i, period := range periods {
		total, err := r.svc.Sessions.Sessions(ctx, property, period.Range)
		if err != nil {
			r.notice(ctx, Notice{
				Tab:     period.Label,
				Level:   NoticePartial,
				Message: fmt.Sprintf("sesiones GA4: %v", err),
			})
			continue
		}
		out[i] = &total
	}
	return out
}

// summarize asks the model for a reading of the audit. A failure is a
// notice and the tab is skipped.
func (r *run) summarize(ctx context.Context, in summary.Input) (report.Table, bool) {
	if r.svc.Summarizer == nil {
		r.notice(ctx, Notice{Tab: summary.TabName, Level: NoticeSkipped, Message: "modelo no configurado"})
		return report.Table{}, false
	}
	paragraphs, err := r.svc.Summarizer.Summarize(ctx, in)
	if err != nil {
		r.notice(ctx, Notice{Tab: summary.TabName, Level: NoticeSkipped, Message: err.Error()})
		return report.Table{}, false
	}
	return summary.Table(paragraphs), true
}

func anySessions(sessions []*int64) bool {
	for _, s := range sessions {
		if s != nil {
			return true
		}
	}
	return false
}

func allEmpty(results []sc.Result) bool {
	for _, res := range results {
		if len(res.Rows) > 0 {
			return false
		}
	}
	return true
}
