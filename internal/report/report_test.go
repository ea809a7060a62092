package report

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sc "github.com/joshsymonds/gscreport/internal/searchconsole"
	"github.com/joshsymonds/gscreport/internal/window"
)

func TestCTRZeroImpressions(t *testing.T) {
	assert.Equal(t, 0.0, CTR(0, 0))
	assert.Equal(t, 0.0, CTR(5, 0))
	assert.InDelta(t, 0.25, CTR(1, 4), 1e-9)
	assert.False(t, math.IsNaN(Totals{}.CTR()))
}

func TestSection(t *testing.T) {
	tests := []struct {
		url        string
		section    string
		subsection string
	}{
		{url: "https://site.com/amp/deportes/futbol/nota.html", section: "deportes", subsection: "futbol"},
		{url: "https://site.com/Deportes/nota.html", section: "deportes", subsection: ""},
		{url: "https://site.com/politica/nacional/2025/nota", section: "politica", subsection: "nacional"},
		{url: "https://site.com/", section: "", subsection: ""},
		{url: "https://site.com", section: "", subsection: ""},
		{url: "https://site.com/amp/", section: "", subsection: ""},
		{url: "/economia//mercados/x", section: "economia", subsection: "mercados"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.section, Section(tt.url))
			assert.Equal(t, tt.subsection, Subsection(tt.url))
		})
	}
}

func TestPagesTable(t *testing.T) {
	res := sc.Result{
		Dimensions: []sc.Dimension{sc.DimPage},
		Rows: []sc.Row{
			{Keys: []string{"https://site.com/amp/deportes/futbol/nota.html"}, Clicks: 10, Impressions: 100, CTR: 0.1, Position: 3.5},
			{Keys: []string{"https://site.com/cultura/nota"}, Clicks: 1, Impressions: 50, CTR: 0.02, Position: 12},
		},
	}
	tbl := PagesTable("Pre Search", res)

	assert.Equal(t, "Pre Search", tbl.Name)
	assert.Equal(t, []string{"page", "clics", "impresiones", "ctr", "posición", "sección", "subsección"}, tbl.Columns)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, []any{
		"https://site.com/amp/deportes/futbol/nota.html", int64(10), int64(100), 0.1, 3.5, "deportes", "futbol",
	}, tbl.Rows[0])
	assert.Equal(t, "cultura", tbl.Rows[1][5])
}

func TestPagesTableEmptyKeepsHeader(t *testing.T) {
	tbl := PagesTable("Post Discover", sc.Result{Dimensions: []sc.Dimension{sc.DimPage}})
	assert.True(t, tbl.Empty())
	values := tbl.Values()
	require.Len(t, values, 1)
	assert.Equal(t, "page", values[0][0])
}

func TestMergeCountriesFillsMissingSides(t *testing.T) {
	merged := MergeCountries(
		[]Totals{{Key: "AR", Clicks: 10}},
		[]Totals{{Key: "MX", Clicks: 5}},
	)
	require.Len(t, merged, 2)

	assert.Equal(t, "AR", merged[0].Country)
	assert.Equal(t, int64(10), merged[0].Pre.Clicks)
	assert.Equal(t, int64(0), merged[0].Post.Clicks)

	assert.Equal(t, "MX", merged[1].Country)
	assert.Equal(t, int64(0), merged[1].Pre.Clicks)
	assert.Equal(t, int64(5), merged[1].Post.Clicks)

	tbl := CountryTable("Países Search", merged)
	assert.Equal(t, "clicks_pre", tbl.Columns[2])
	assert.Equal(t, "clicks_post", tbl.Columns[5])
	assert.Equal(t, int64(0), tbl.Rows[0][5])
	assert.Equal(t, int64(0), tbl.Rows[1][2])
	assert.Equal(t, 0.0, tbl.Rows[1][4], "ctr_pre without impressions is zero")
}

func TestMergeCountriesBothSides(t *testing.T) {
	merged := MergeCountries(
		[]Totals{{Key: "arg", Clicks: 10, Impressions: 100}, {Key: "esp", Clicks: 2, Impressions: 20}},
		[]Totals{{Key: "esp", Clicks: 4, Impressions: 10}, {Key: "arg", Clicks: 1, Impressions: 10}},
	)
	require.Len(t, merged, 2)
	assert.Equal(t, "arg", merged[0].Country)
	assert.Equal(t, int64(1), merged[0].Post.Clicks)
	assert.InDelta(t, 0.4, merged[1].Post.CTR(), 1e-9)
}

func TestCountryName(t *testing.T) {
	assert.Equal(t, "Argentina", CountryName("arg"))
	assert.Equal(t, "Mexico", CountryName("MX"))
	assert.Equal(t, "Desconocido", CountryName("zzz"))
	assert.Equal(t, "QQQ", CountryName("qqq"))
}

func TestDailyTotalsSortedAndRecomputed(t *testing.T) {
	res := sc.Result{
		Dimensions: []sc.Dimension{sc.DimPage, sc.DimDate},
		Rows: []sc.Row{
			{Keys: []string{"/a", "2025-06-02"}, Clicks: 3, Impressions: 10, CTR: 0.3},
			{Keys: []string{"/b", "2025-06-01"}, Clicks: 1, Impressions: 0},
			{Keys: []string{"/c", "2025-06-02"}, Clicks: 1, Impressions: 10, CTR: 0.1},
			{Keys: []string{"/a", "2025-06-01"}, Clicks: 0, Impressions: 0},
		},
	}
	totals := DailyTotals(res)
	require.Len(t, totals, 2)
	assert.Equal(t, "2025-06-01", totals[0].Key)
	assert.Equal(t, 0.0, totals[0].CTR())
	assert.Equal(t, "2025-06-02", totals[1].Key)
	assert.Equal(t, int64(4), totals[1].Clicks)
	assert.InDelta(t, 0.2, totals[1].CTR(), 1e-9)

	tbl := DateTable("Diario", totals, func(d string) string {
		if d < "2025-06-02" {
			return "pre"
		}
		return "post"
	})
	assert.Equal(t, []string{"fecha", "clics", "impresiones", "ctr", "fase"}, tbl.Columns)
	assert.Equal(t, "pre", tbl.Rows[0][4])
	assert.Equal(t, "post", tbl.Rows[1][4])

	plain := DateTable("Diario", totals, nil)
	assert.Len(t, plain.Columns, 4)
}

func TestMonthlyTables(t *testing.T) {
	months := []MonthResult{
		{
			Month: window.Date(2025, time.January, 1),
			Result: sc.Result{
				Dimensions: []sc.Dimension{sc.DimPage},
				Rows: []sc.Row{
					{Keys: []string{"https://s.com/salud/x"}, Clicks: 4, Impressions: 8},
					{Keys: []string{"https://s.com/salud/y"}, Clicks: 0, Impressions: 2},
				},
			},
		},
		{Month: window.Date(2025, time.February, 1), Result: sc.Result{Dimensions: []sc.Dimension{sc.DimPage}}},
	}

	pages := MonthlyPagesTable("Evergreen Search", months)
	require.Len(t, pages.Rows, 2)
	assert.Equal(t, window.Date(2025, time.January, 1), pages.Rows[0][0])
	assert.Equal(t, "salud", pages.Rows[0][6])
	assert.Equal(t, "2025-01-01", pages.Values()[1][0])

	totals := MonthlyTotalsTable("Meses Search", months)
	require.Len(t, totals.Rows, 2)
	assert.Equal(t, []any{window.Date(2025, time.January, 1), int64(4), int64(10), 0.4}, totals.Rows[0])
	assert.Equal(t, 0.0, totals.Rows[1][3])
}

func TestPeriodTable(t *testing.T) {
	sessions := int64(42)
	periods := []PeriodMetrics{
		{Period: window.Period{Label: "Actual"}, Totals: Totals{Clicks: 15, Impressions: 100}, Sessions: &sessions},
		{Period: window.Period{Label: "Anterior 1"}, Totals: Totals{Clicks: 10, Impressions: 100}},
		{Period: window.Period{Label: "Anterior 2"}, Totals: Totals{Clicks: 0, Impressions: 0}},
	}
	tbl := PeriodTable("Auditoría Search", periods)
	assert.Contains(t, tbl.Columns, "sesiones")
	assert.InDelta(t, 0.5, tbl.Rows[0][7], 1e-9)
	assert.Nil(t, tbl.Rows[1][7])
	values := tbl.Values()
	assert.Equal(t, int64(42), values[1][8])
	assert.Equal(t, "", values[2][7])
	assert.Equal(t, "", values[2][8])
	assert.Equal(t, 0.0, values[3][5])
}

func TestSummarizePeriodWeightsPosition(t *testing.T) {
	res := sc.Result{Rows: []sc.Row{
		{Clicks: 1, Impressions: 10, Position: 1},
		{Clicks: 1, Impressions: 30, Position: 5},
	}}
	pm := SummarizePeriod(window.Period{Label: "Actual"}, res)
	assert.Equal(t, int64(2), pm.Totals.Clicks)
	assert.InDelta(t, 4.0, pm.Position, 1e-9)
	assert.Equal(t, 0.0, WeightedPosition(sc.Result{}))
}

func TestTopMovers(t *testing.T) {
	cur := sc.Result{Dimensions: []sc.Dimension{sc.DimPage}, Rows: []sc.Row{
		{Keys: []string{"/b"}, Clicks: 5},
		{Keys: []string{"/a"}, Clicks: 5},
		{Keys: []string{"/c"}, Clicks: 9},
	}}
	prev := sc.Result{Dimensions: []sc.Dimension{sc.DimPage}, Rows: []sc.Row{
		{Keys: []string{"/a"}, Clicks: 7},
	}}
	movers := TopMovers(cur, prev, 2)
	require.Len(t, movers, 2)
	assert.Equal(t, "/c", movers[0].Page)
	assert.Equal(t, "/a", movers[1].Page)
	assert.Equal(t, int64(-2), movers[1].Delta())

	tbl := MoversTable("Top", movers)
	assert.Equal(t, int64(9), tbl.Rows[0][4])
}

func TestCellCoercion(t *testing.T) {
	var missing *int64
	assert.Equal(t, "", Cell(nil))
	assert.Equal(t, "", Cell(math.NaN()))
	assert.Equal(t, "", Cell(math.Inf(1)))
	assert.Equal(t, "", Cell(missing))
	assert.Equal(t, "", Cell(time.Time{}))
	assert.Equal(t, "2025-06-01", Cell(window.Date(2025, time.June, 1)))
	assert.Equal(t, 1.5, Cell(1.5))
	assert.Equal(t, "x", Cell("x"))
}

func TestConfigTableAndActivity(t *testing.T) {
	tbl := ConfigTable([]Setting{{Key: "Sitio", Value: "sc-domain:site.com"}, {Key: "Inicio", Value: window.Date(2025, time.June, 1)}})
	assert.Equal(t, []string{"Configuración", "Valor"}, tbl.Columns)
	assert.Equal(t, "2025-06-01", tbl.Values()[2][1])

	entry := ActivityEntry{
		Timestamp:    time.Date(2025, time.July, 1, 10, 0, 0, 0, time.UTC),
		UserEmail:    "ana@example.com",
		Event:        "analysis_created",
		AnalysisKind: "core_update",
	}
	values := entry.Values()
	require.Len(t, values, len(ActivityColumns))
	assert.Equal(t, "2025-07-01T10:00:00Z", values[0])
	assert.Equal(t, "core_update", values[4])
	assert.Len(t, ActivityHeader(), 10)
}
