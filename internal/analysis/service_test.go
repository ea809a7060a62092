package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshsymonds/gscreport/internal/report"
	sc "github.com/joshsymonds/gscreport/internal/searchconsole"
	"github.com/joshsymonds/gscreport/internal/summary"
	"github.com/joshsymonds/gscreport/internal/window"
	"github.com/joshsymonds/gscreport/internal/xlsx"
)

var testNow = time.Date(2025, time.July, 3, 12, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	mu       sync.Mutex
	requests []sc.Request
	respond  func(req sc.Request) (sc.Result, error)
}

func (f *fakeFetcher) Fetch(ctx context.Context, site string, req sc.Request) (sc.Result, error) {
	_ = ctx
	_ = site
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.respond == nil {
		return sc.Result{Dimensions: req.Dimensions}, nil
	}
	return f.respond(req)
}

type fakeDestination struct {
	tables   []report.Table
	failOn   string
	closed   bool
	closeErr error
}

func (d *fakeDestination) Document() report.Document {
	return report.Document{ID: "sheet-1", Name: "Informe", URL: "https://docs.google.com/spreadsheets/d/sheet-1"}
}

func (d *fakeDestination) WriteTable(ctx context.Context, t report.Table) error {
	_ = ctx
	if t.Name == d.failOn {
		return errors.New("permission denied")
	}
	d.tables = append(d.tables, t)
	return nil
}

func (d *fakeDestination) Close(ctx context.Context) error {
	_ = ctx
	d.closed = true
	return d.closeErr
}

func (d *fakeDestination) names() []string {
	out := make([]string, len(d.tables))
	for i, t := range d.tables {
		out[i] = t.Name
	}
	return out
}

type fakePublisher struct {
	dest  *fakeDestination
	err   error
	kind  Kind
	title string
	calls int
}

func (p *fakePublisher) Create(ctx context.Context, kind Kind, title string) (Destination, error) {
	_ = ctx
	p.calls++
	p.kind = kind
	p.title = title
	if p.err != nil {
		return nil, p.err
	}
	return p.dest, nil
}

type fakeActivity struct {
	entries []report.ActivityEntry
	err     error
}

func (a *fakeActivity) Append(ctx context.Context, entry report.ActivityEntry) error {
	_ = ctx
	a.entries = append(a.entries, entry)
	return a.err
}

type fakeSessions struct {
	total int64
	err   error
}

func (f fakeSessions) Sessions(ctx context.Context, property string, r window.Range) (int64, error) {
	_ = ctx
	_ = property
	_ = r
	return f.total, f.err
}

type fakeSummarizer struct {
	in  summary.Input
	err error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, in summary.Input) ([]string, error) {
	_ = ctx
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return []string{"El tráfico sube.", "Las noticias lideran."}, nil
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(fetcher Fetcher, pub Publisher) (*Service, *fakeActivity) {
	svc := NewService(fetcher, pub, slogDiscard())
	svc.Clock = func() time.Time { return testNow }
	activity := &fakeActivity{}
	svc.Activity = activity
	return svc, activity
}

func dataFetcher() *fakeFetcher {
	pre := window.Range{Start: window.Date(2025, time.May, 18), End: window.Date(2025, time.June, 4)}
	return &fakeFetcher{respond: func(req sc.Request) (sc.Result, error) {
		res := sc.Result{Dimensions: req.Dimensions}
		switch {
		case len(req.Dimensions) == 0:
			res.Rows = []sc.Row{{Clicks: 30, Impressions: 300, CTR: 0.1, Position: 4}}
		case req.Dimensions[0] == sc.DimPage:
			res.Rows = []sc.Row{
				{Keys: []string{"https://site.com/news/a"}, Clicks: 10, Impressions: 100, CTR: 0.1, Position: 3},
				{Keys: []string{"https://site.com/amp/sports/b"}, Clicks: 5, Impressions: 50, CTR: 0.1, Position: 5},
			}
		case req.Dimensions[0] == sc.DimCountry:
			code := "mex"
			if req.Range == pre {
				code = "arg"
			}
			res.Rows = []sc.Row{{Keys: []string{code}, Clicks: 7, Impressions: 70}}
		case req.Dimensions[0] == sc.DimDate:
			res.Rows = []sc.Row{
				{Keys: []string{"2025-06-20"}, Clicks: 3, Impressions: 30},
				{Keys: []string{"2025-06-01"}, Clicks: 1, Impressions: 10},
				{Keys: []string{"2025-06-08"}, Clicks: 2, Impressions: 20},
			}
		}
		return res, nil
	}}
}

func coreUpdateParams() CoreUpdateParams {
	return CoreUpdateParams{
		Common: Common{
			Site:    "sc-domain:site.com",
			Types:   []sc.DataType{sc.TypeWeb},
			LagDays: 3,
		},
		Name:  "June 2025",
		Start: window.Date(2025, time.June, 5),
		Ended: true,
		End:   window.Date(2025, time.June, 12),
	}
}

func tableNamed(t *testing.T, dest *fakeDestination, name string) report.Table {
	t.Helper()
	for _, tbl := range dest.tables {
		if tbl.Name == name {
			return tbl
		}
	}
	t.Fatalf("table %q not written; have %v", name, dest.names())
	return report.Table{}
}

func TestCoreUpdateWritesTabsInOrder(t *testing.T) {
	dest := &fakeDestination{}
	pub := &fakePublisher{dest: dest}
	svc, activity := newTestService(dataFetcher(), pub)

	rep, err := svc.CoreUpdate(context.Background(), RunContext{UserEmail: "ana@site.com"}, coreUpdateParams())
	require.NoError(t, err)

	assert.Equal(t, KindCoreUpdate, pub.kind)
	assert.Equal(t, "Core Update - June 2025 - sc-domain:site.com - 2025-06-30", pub.title)
	assert.Equal(t, []string{
		"Pre Search", "Post Search", "Países Search", "Diario Search", "Resumen Search",
		report.ConfigTabName,
	}, dest.names())
	assert.True(t, dest.closed)
	assert.True(t, rep.WroteAny)
	require.NoError(t, rep.Err())
	assert.NotEmpty(t, rep.Run.ID)
	assert.Equal(t, "sheet-1", rep.Run.Document.ID)
	assert.Empty(t, rep.Notices)

	pages := tableNamed(t, dest, "Pre Search")
	assert.Equal(t, "sports", pages.Rows[1][5])

	countries := tableNamed(t, dest, "Países Search")
	require.Len(t, countries.Rows, 2)
	assert.Equal(t, "arg", countries.Rows[0][0])
	assert.Equal(t, int64(0), countries.Rows[0][5])
	assert.Equal(t, "mex", countries.Rows[1][0])
	assert.Equal(t, int64(0), countries.Rows[1][2])

	daily := tableNamed(t, dest, "Diario Search")
	require.Len(t, daily.Rows, 3)
	assert.Equal(t, []any{"2025-06-01", int64(1), int64(10), 0.1, PhasePre}, daily.Rows[0])
	assert.Equal(t, PhaseUpdate, daily.Rows[1][4])
	assert.Equal(t, PhasePost, daily.Rows[2][4])

	require.Len(t, activity.entries, 1)
	entry := activity.entries[0]
	assert.Equal(t, EventRunCompleted, entry.Event)
	assert.Equal(t, "ana@site.com", entry.UserEmail)
	assert.Equal(t, "core_update", entry.AnalysisKind)
	assert.Equal(t, "sheet-1", entry.SheetID)
}

func TestCoreUpdateCountryTablesDropCountryFilter(t *testing.T) {
	fetcher := dataFetcher()
	svc, _ := newTestService(fetcher, &fakePublisher{dest: &fakeDestination{}})
	p := coreUpdateParams()
	p.Country = "ARG"
	p.Section = "/news"

	_, err := svc.CoreUpdate(context.Background(), RunContext{}, p)
	require.NoError(t, err)

	for _, req := range fetcher.requests {
		dims := req.Dimensions
		if len(dims) == 1 && dims[0] == sc.DimCountry {
			assert.Equal(t, []sc.Filter{{Dimension: sc.DimPage, Operator: sc.OpContains, Expression: "news"}}, req.Filters)
			assert.Equal(t, sc.CountryRowLimit, req.RowLimit)
			continue
		}
		assert.Len(t, req.Filters, 2)
	}
}

func TestCoreUpdateRejectsInvalidParamsBeforeWriting(t *testing.T) {
	cases := map[string]func(*CoreUpdateParams){
		"missing site":       func(p *CoreUpdateParams) { p.Site = "" },
		"missing end":        func(p *CoreUpdateParams) { p.End = time.Time{} },
		"end before start":   func(p *CoreUpdateParams) { p.End = window.Date(2025, time.June, 1) },
		"bad country":        func(p *CoreUpdateParams) { p.Country = "AR" },
		"subsection alone":   func(p *CoreUpdateParams) { p.Subsection = "futbol" },
		"negative lag":       func(p *CoreUpdateParams) { p.LagDays = -1 },
		"unknown type":       func(p *CoreUpdateParams) { p.Types = []sc.DataType{"news"} },
		"no types":           func(p *CoreUpdateParams) { p.Types = nil },
		"missing start date": func(p *CoreUpdateParams) { p.Start = time.Time{} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			pub := &fakePublisher{dest: &fakeDestination{}}
			svc, activity := newTestService(dataFetcher(), pub)
			p := coreUpdateParams()
			mutate(&p)

			_, err := svc.CoreUpdate(context.Background(), RunContext{}, p)
			require.ErrorIs(t, err, ErrInvalidParams)
			assert.Zero(t, pub.calls)
			assert.Empty(t, activity.entries)
		})
	}
}

func TestPartialAndEmptyResultsBecomeNotices(t *testing.T) {
	base := dataFetcher()
	fetcher := &fakeFetcher{respond: func(req sc.Request) (sc.Result, error) {
		if len(req.Dimensions) == 1 && req.Dimensions[0] == sc.DimDate {
			return sc.Result{Dimensions: req.Dimensions}, nil
		}
		res, err := base.respond(req)
		if len(req.Dimensions) == 1 && req.Dimensions[0] == sc.DimPage {
			res.Status = sc.StatusPartial
			res.Cause = errors.New("503")
		}
		return res, err
	}}
	dest := &fakeDestination{}
	svc, _ := newTestService(fetcher, &fakePublisher{dest: dest})

	rep, err := svc.CoreUpdate(context.Background(), RunContext{}, coreUpdateParams())
	require.NoError(t, err)
	assert.True(t, rep.WroteAny)

	levels := map[NoticeLevel]int{}
	for _, n := range rep.Notices {
		levels[n.Level]++
	}
	assert.Equal(t, 2, levels[NoticePartial])
	assert.Equal(t, 1, levels[NoticeEmpty])

	daily := tableNamed(t, dest, "Diario Search")
	assert.True(t, daily.Empty())
}

func TestRunWithoutDataReportsNoOutput(t *testing.T) {
	dest := &fakeDestination{}
	svc, activity := newTestService(&fakeFetcher{}, &fakePublisher{dest: dest})

	rep, err := svc.CoreUpdate(context.Background(), RunContext{}, coreUpdateParams())
	require.NoError(t, err)
	assert.False(t, rep.WroteAny)
	require.ErrorIs(t, rep.Err(), ErrNoOutput)
	assert.Len(t, dest.tables, 6)
	require.Len(t, activity.entries, 1)
	assert.Contains(t, activity.entries[0].Notes, "sin datos")
}

func TestDestinationErrorsAreFatal(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		svc, activity := newTestService(dataFetcher(), &fakePublisher{err: errors.New("template missing")})
		_, err := svc.CoreUpdate(context.Background(), RunContext{}, coreUpdateParams())
		require.Error(t, err)
		assert.Empty(t, activity.entries)
	})
	t.Run("write", func(t *testing.T) {
		dest := &fakeDestination{failOn: "Países Search"}
		svc, activity := newTestService(dataFetcher(), &fakePublisher{dest: dest})
		rep, err := svc.CoreUpdate(context.Background(), RunContext{}, coreUpdateParams())
		require.Error(t, err)
		assert.Equal(t, []string{"Pre Search", "Post Search"}, dest.names())
		assert.Len(t, rep.Tabs, 2)
		assert.True(t, dest.closed)
		require.Len(t, activity.entries, 1)
		assert.Equal(t, EventRunFailed, activity.entries[0].Event)
	})
}

func TestActivityFailureIsANotice(t *testing.T) {
	svc, activity := newTestService(dataFetcher(), &fakePublisher{dest: &fakeDestination{}})
	activity.err = errors.New("quota")

	rep, err := svc.CoreUpdate(context.Background(), RunContext{}, coreUpdateParams())
	require.NoError(t, err)
	require.Len(t, rep.Notices, 1)
	assert.Equal(t, NoticeSkipped, rep.Notices[0].Level)
}

func TestFetchOrderIsDeterministicUnderConcurrency(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	base := dataFetcher()
	fetcher := &fakeFetcher{respond: func(req sc.Request) (sc.Result, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n%2 == 1 {
			time.Sleep(5 * time.Millisecond)
		}
		return base.respond(req)
	}}
	dest := &fakeDestination{}
	svc, _ := newTestService(fetcher, &fakePublisher{dest: dest})
	svc.Workers = 8
	p := coreUpdateParams()
	p.Types = []sc.DataType{sc.TypeWeb, sc.TypeDiscover}

	_, err := svc.CoreUpdate(context.Background(), RunContext{}, p)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Pre Search", "Post Search", "Países Search", "Diario Search", "Resumen Search",
		"Pre Discover", "Post Discover", "Países Discover", "Diario Discover", "Resumen Discover",
		report.ConfigTabName,
	}, dest.names())
}

func TestEvergreenFetchesEachMonth(t *testing.T) {
	fetcher := dataFetcher()
	dest := &fakeDestination{}
	svc, _ := newTestService(fetcher, &fakePublisher{dest: dest})

	rep, err := svc.Evergreen(context.Background(), RunContext{}, EvergreenParams{Common: Common{
		Site: "sc-domain:site.com", Types: []sc.DataType{sc.TypeWeb}, LagDays: 3,
	}})
	require.NoError(t, err)
	assert.True(t, rep.WroteAny)
	assert.Len(t, fetcher.requests, window.EvergreenMonths)
	assert.Equal(t, []string{"Mensual Search", "Totales Search", report.ConfigTabName}, dest.names())

	totals := tableNamed(t, dest, "Totales Search")
	require.Len(t, totals.Rows, window.EvergreenMonths)
	assert.Equal(t, window.Date(2024, time.February, 1), totals.Rows[0][0])
	assert.Equal(t, window.Date(2025, time.May, 1), totals.Rows[15][0])
	assert.Len(t, tableNamed(t, dest, "Mensual Search").Rows, 2*window.EvergreenMonths)
}

func auditParams() AuditParams {
	return AuditParams{
		Common:      Common{Site: "sc-domain:site.com", Types: []sc.DataType{sc.TypeWeb}, LagDays: 3},
		Mode:        window.ModeWeekly,
		PeriodsBack: 2,
		TopN:        1,
		GA4Property: "123",
		Summarize:   true,
	}
}

func TestAuditWithSessionsAndSummary(t *testing.T) {
	dest := &fakeDestination{}
	svc, _ := newTestService(dataFetcher(), &fakePublisher{dest: dest})
	svc.Sessions = fakeSessions{total: 400}
	sum := &fakeSummarizer{}
	svc.Summarizer = sum

	rep, err := svc.Audit(context.Background(), RunContext{}, auditParams())
	require.NoError(t, err)
	assert.True(t, rep.WroteAny)
	assert.Equal(t, []string{"Periodos Search", "Top páginas Search", summary.TabName, report.ConfigTabName}, dest.names())

	periods := tableNamed(t, dest, "Periodos Search")
	require.Len(t, periods.Rows, 3)
	assert.Equal(t, "Actual", periods.Rows[0][0])
	assert.Equal(t, window.Date(2025, time.June, 30), periods.Rows[0][2])
	assert.Contains(t, periods.Columns, "sesiones")

	movers := tableNamed(t, dest, "Top páginas Search")
	require.Len(t, movers.Rows, 1)
	assert.Equal(t, "https://site.com/news/a", movers.Rows[0][0])

	require.Len(t, sum.in.Sections, 1)
	assert.Len(t, sum.in.Sections[0].Periods, 3)
	assert.Len(t, tableNamed(t, dest, summary.TabName).Rows, 2)
}

func TestAuditOptionalFailuresAreNotices(t *testing.T) {
	dest := &fakeDestination{}
	svc, _ := newTestService(dataFetcher(), &fakePublisher{dest: dest})
	svc.Sessions = fakeSessions{err: errors.New("forbidden")}
	svc.Summarizer = &fakeSummarizer{err: errors.New("rate limited")}

	rep, err := svc.Audit(context.Background(), RunContext{}, auditParams())
	require.NoError(t, err)
	assert.Len(t, rep.Notices, 4)
	assert.NotContains(t, dest.names(), summary.TabName)
	assert.NotContains(t, tableNamed(t, dest, "Periodos Search").Columns, "sesiones")
}

func TestAuditWithoutDataSkipsSummary(t *testing.T) {
	dest := &fakeDestination{}
	svc, _ := newTestService(&fakeFetcher{}, &fakePublisher{dest: dest})
	sum := &fakeSummarizer{}
	svc.Summarizer = sum
	p := auditParams()
	p.GA4Property = ""

	rep, err := svc.Audit(context.Background(), RunContext{}, p)
	require.NoError(t, err)
	assert.False(t, rep.WroteAny)
	require.ErrorIs(t, rep.Err(), ErrNoOutput)
	assert.NotContains(t, dest.names(), summary.TabName)
	assert.Empty(t, sum.in.Sections)

	last := rep.Notices[len(rep.Notices)-1]
	assert.Equal(t, summary.TabName, last.Tab)
	assert.Equal(t, NoticeEmpty, last.Level)
}

func TestAuditKeepsSessionsWithoutSearchData(t *testing.T) {
	dest := &fakeDestination{}
	svc, _ := newTestService(&fakeFetcher{}, &fakePublisher{dest: dest})
	svc.Sessions = fakeSessions{total: 250}
	sum := &fakeSummarizer{}
	svc.Summarizer = sum

	rep, err := svc.Audit(context.Background(), RunContext{}, auditParams())
	require.NoError(t, err)
	assert.True(t, rep.WroteAny)

	periods := tableNamed(t, dest, "Periodos Search")
	require.Len(t, periods.Rows, 3)
	assert.Contains(t, periods.Columns, "sesiones")
	require.Len(t, sum.in.Sections, 1)
	assert.Len(t, sum.in.Sections[0].Periods, 3)
}

func TestAuditCustomModeNeedsDays(t *testing.T) {
	svc, _ := newTestService(dataFetcher(), &fakePublisher{dest: &fakeDestination{}})
	p := auditParams()
	p.Mode = window.ModeCustom
	_, err := svc.Audit(context.Background(), RunContext{}, p)
	require.ErrorIs(t, err, ErrInvalidParams)

	p.PeriodsBack = 13
	p.CustomDays = 10
	_, err = svc.Audit(context.Background(), RunContext{}, p)
	require.ErrorIs(t, err, ErrInvalidParams)
}

func TestParseTypes(t *testing.T) {
	got, err := ParseTypes(" web, Discover ,web")
	require.NoError(t, err)
	assert.Equal(t, []sc.DataType{sc.TypeWeb, sc.TypeDiscover}, got)

	_, err = ParseTypes("news")
	require.ErrorIs(t, err, ErrInvalidParams)
	_, err = ParseTypes(" , ")
	require.ErrorIs(t, err, ErrInvalidParams)
}

func TestPrintHuman(t *testing.T) {
	rep := RunReport{
		Run: AnalysisRun{
			Kind:     KindAudit,
			Site:     "sc-domain:site.com",
			Document: report.Document{Name: "Informe", URL: "https://example.com/x"},
		},
		Tabs:    []TabReport{{Name: "Periodos Search", Rows: 3}},
		Notices: []Notice{{Tab: "Diario Search", Level: NoticeEmpty, Message: "sin datos para este segmento"}},
	}
	var buf bytes.Buffer
	require.NoError(t, PrintHuman(rep, &buf))
	out := buf.String()
	assert.Contains(t, out, "gscreport audit: sc-domain:site.com")
	assert.Contains(t, out, "Periodos Search")
	assert.Contains(t, out, "[empty] Diario Search")
	assert.Contains(t, out, "No data was written")
}

func TestWriteJSONRejectsEscapingPaths(t *testing.T) {
	for _, path := range []string{"", "  ", "/tmp/report.json", "../report.json", ".."} {
		_, err := WriteJSON(RunReport{}, path)
		assert.Error(t, err, path)
	}
}

func TestWriteJSONNamesFileAfterRun(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.Mkdir("runs", 0o700))
	rep := RunReport{Run: AnalysisRun{ID: "run-7", Kind: KindAudit, Site: "sc-domain:site.com"}, WroteAny: true}

	written, err := WriteJSON(rep, "runs")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("runs", "audit-run-7.json"), written)

	raw, err := os.ReadFile(written)
	require.NoError(t, err)
	var got RunReport
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "run-7", got.Run.ID)
	assert.True(t, got.WroteAny)

	written, err = WriteJSON(rep, "report.json")
	require.NoError(t, err)
	assert.Equal(t, "report.json", written)
}

func TestEvergreenToLocalWorkbook(t *testing.T) {
	dir := t.TempDir()
	svc, _ := newTestService(dataFetcher(), XLSXPublisher{Publisher: &xlsx.Publisher{Dir: dir}})

	rep, err := svc.Evergreen(context.Background(), RunContext{}, EvergreenParams{Common: Common{
		Site: "sc-domain:site.com", Types: []sc.DataType{sc.TypeWeb}, LagDays: 3,
	}})
	require.NoError(t, err)
	assert.FileExists(t, rep.Run.Document.ID)
	assert.Equal(t, dir, filepath.Dir(rep.Run.Document.ID))
}
