// Package analysis runs the core-update, evergreen and audit reports: it
// computes windows, fetches metrics, shapes tables and writes them to a
// destination.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joshsymonds/gscreport/internal/report"
	sc "github.com/joshsymonds/gscreport/internal/searchconsole"
	"github.com/joshsymonds/gscreport/internal/summary"
	"github.com/joshsymonds/gscreport/internal/window"
)

const defaultWorkers = 4

// Activity log event names.
const (
	EventRunCompleted = "run_completed"
	EventRunFailed    = "run_failed"
)

// Fetcher retrieves paginated search analytics rows.
type Fetcher interface {
	Fetch(ctx context.Context, site string, req sc.Request) (sc.Result, error)
}

// Destination receives the tables of one run.
type Destination interface {
	Document() report.Document
	WriteTable(ctx context.Context, t report.Table) error
	Close(ctx context.Context) error
}

// Publisher creates a fresh destination per run.
type Publisher interface {
	Create(ctx context.Context, kind Kind, title string) (Destination, error)
}

// ActivityLogger records one entry per run.
type ActivityLogger interface {
	Append(ctx context.Context, entry report.ActivityEntry) error
}

// SessionSource reports GA4 sessions for a property and range.
type SessionSource interface {
	Sessions(ctx context.Context, property string, r window.Range) (int64, error)
}

// Summarizer writes a prose reading of audit results.
type Summarizer interface {
	Summarize(ctx context.Context, in summary.Input) ([]string, error)
}

// Service orchestrates analysis runs. Activity, Sessions and Summarizer
// are optional.
type Service struct {
	Fetcher    Fetcher
	Publisher  Publisher
	Activity   ActivityLogger
	Sessions   SessionSource
	Summarizer Summarizer
	Logger     *slog.Logger
	Clock      func() time.Time
	Workers    int
}

// NewService constructs a Service with sane defaults.
func NewService(fetcher Fetcher, publisher Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Service{
		Fetcher:   fetcher,
		Publisher: publisher,
		Logger:    logger,
		Clock:     time.Now,
		Workers:   defaultWorkers,
	}
}

// fetchStep is one query of a run. Tab is used in notices and logs.
type fetchStep struct {
	Tab     string
	Request sc.Request
}

// fetchAll runs steps with bounded concurrency. Results are slotted by
// step index so table order never depends on completion order. Only
// malformed requests fail the group; transport errors come back as
// partial results.
func (s *Service) fetchAll(ctx context.Context, site string, steps []fetchStep) ([]sc.Result, error) {
	results := make([]sc.Result, len(steps))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())
	for i, step := range steps {
		g.Go(func() error {
			res, err := s.Fetcher.Fetch(gctx, site, step.Request)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", step.Tab, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) workers() int {
	if s.Workers <= 0 {
		return 1
	}
	return s.Workers
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}

// run tracks one analysis from destination creation to the activity entry.
type run struct {
	svc    *Service
	rc     RunContext
	dest   Destination
	report RunReport
}

// start creates the destination. Failing here is fatal and nothing has
// been written yet.
func (s *Service) start(ctx context.Context, rc RunContext, kind Kind, site, title string) (*run, error) {
	if s.Publisher == nil {
		return nil, fmt.Errorf("%w: no destination configured", ErrInvalidParams)
	}
	dest, err := s.Publisher.Create(ctx, kind, title)
	if err != nil {
		return nil, fmt.Errorf("create destination: %w", err)
	}
	r := &run{
		svc:  s,
		rc:   rc,
		dest: dest,
		report: RunReport{
			Run: AnalysisRun{
				ID:        uuid.NewString(),
				Kind:      kind,
				Site:      site,
				Title:     title,
				Document:  dest.Document(),
				StartedAt: s.now(),
			},
		},
	}
	s.Logger.InfoContext(ctx, "analysis started",
		slog.String("run_id", r.report.Run.ID),
		slog.String("kind", string(kind)),
		slog.String("site", site),
		slog.String("document", r.report.Run.Document.URL),
	)
	return r, nil
}

// noteResult records partial or empty fetches against tab.
func (r *run) noteResult(ctx context.Context, tab string, res sc.Result) {
	switch {
	case res.Status == sc.StatusPartial:
		r.notice(ctx, Notice{
			Tab:     tab,
			Level:   NoticePartial,
			Message: fmt.Sprintf("datos incompletos (%d filas): %v", len(res.Rows), res.Cause),
		})
	case len(res.Rows) == 0:
		r.notice(ctx, Notice{Tab: tab, Level: NoticeEmpty, Message: "sin datos para este segmento"})
	}
}

func (r *run) notice(ctx context.Context, n Notice) {
	r.report.Notices = append(r.report.Notices, n)
	r.svc.Logger.WarnContext(ctx, "analysis notice",
		slog.String("run_id", r.report.Run.ID),
		slog.String("tab", n.Tab),
		slog.String("level", string(n.Level)),
		slog.String("message", n.Message),
	)
}

// write persists tables in order, then the settings table. A write error
// is fatal; tabs already written stay in place.
func (r *run) write(ctx context.Context, tables []report.Table, settings []report.Setting) error {
	for _, t := range tables {
		if err := r.dest.WriteTable(ctx, t); err != nil {
			return fmt.Errorf("write %q: %w", t.Name, err)
		}
		r.report.Tabs = append(r.report.Tabs, TabReport{Name: t.Name, Rows: t.Len()})
		if !t.Empty() {
			r.report.WroteAny = true
		}
	}
	settings = append(settings,
		report.Setting{Key: "ID de ejecución", Value: r.report.Run.ID},
		report.Setting{Key: "Generado", Value: r.report.Run.StartedAt.UTC().Format(time.RFC3339)},
		report.Setting{Key: "Usuario", Value: r.rc.UserEmail},
	)
	cfg := report.ConfigTable(settings)
	if err := r.dest.WriteTable(ctx, cfg); err != nil {
		return fmt.Errorf("write %q: %w", cfg.Name, err)
	}
	r.report.Tabs = append(r.report.Tabs, TabReport{Name: cfg.Name, Rows: cfg.Len()})
	return nil
}

// finish closes the destination and appends the activity entry. runErr is
// the error that ended the run early, if any.
func (r *run) finish(ctx context.Context, runErr error) (RunReport, error) {
	if closeErr := r.dest.Close(ctx); closeErr != nil {
		runErr = errors.Join(runErr, fmt.Errorf("close destination: %w", closeErr))
	}
	r.report.Run.FinishedAt = r.svc.now()
	event := EventRunCompleted
	if runErr != nil {
		event = EventRunFailed
	}
	if r.svc.Activity != nil {
		entry := report.ActivityEntry{
			Timestamp:    r.report.Run.FinishedAt,
			UserEmail:    r.rc.UserEmail,
			Event:        event,
			SiteURL:      r.report.Run.Site,
			AnalysisKind: string(r.report.Run.Kind),
			SheetID:      r.report.Run.Document.ID,
			SheetName:    r.report.Run.Document.Name,
			SheetURL:     r.report.Run.Document.URL,
			GSCAccount:   r.rc.GSCAccount,
			Notes:        r.notes(runErr),
		}
		if err := r.svc.Activity.Append(ctx, entry); err != nil {
			r.notice(ctx, Notice{Level: NoticeSkipped, Message: fmt.Sprintf("registro de actividad: %v", err)})
		}
	}
	logger := r.svc.Logger.With(
		slog.String("run_id", r.report.Run.ID),
		slog.Int("tabs", len(r.report.Tabs)),
		slog.Int("notices", len(r.report.Notices)),
		slog.Duration("elapsed", r.report.Run.FinishedAt.Sub(r.report.Run.StartedAt)),
	)
	if runErr != nil {
		logger.ErrorContext(ctx, "analysis failed", slog.Any("error", runErr))
		return r.report, runErr
	}
	logger.InfoContext(ctx, "analysis finished", slog.Bool("wrote_any", r.report.WroteAny))
	return r.report, nil
}

func (r *run) notes(runErr error) string {
	var parts []string
	if runErr != nil {
		parts = append(parts, runErr.Error())
	}
	if n := len(r.report.Notices); n > 0 {
		parts = append(parts, fmt.Sprintf("%d avisos", n))
	}
	if !r.report.WroteAny {
		parts = append(parts, "sin datos")
	}
	return strings.Join(parts, "; ")
}

// commonSettings describes the filters shared by every kind.
func commonSettings(kind Kind, c Common, ref time.Time) []report.Setting {
	types := make([]string, len(c.Types))
	for i, t := range c.Types {
		types[i] = t.Label()
	}
	return []report.Setting{
		{Key: "Sitio", Value: c.Site},
		{Key: "Análisis", Value: string(kind)},
		{Key: "Tipos", Value: strings.Join(types, ", ")},
		{Key: "País", Value: countrySetting(c.Country)},
		{Key: "Sección", Value: c.Section},
		{Key: "Subsección", Value: c.Subsection},
		{Key: "Días de retraso", Value: c.LagDays},
		{Key: "Fecha de referencia", Value: ref},
	}
}

func countrySetting(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Todos"
	}
	return strings.ToLower(code) + " (" + report.CountryName(code) + ")"
}

func title(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " - ")
}
