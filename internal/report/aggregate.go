package report

import (
	"net/url"
	"sort"
	"strings"

	sc "github.com/joshsymonds/gscreport/internal/searchconsole"
)

const ampPrefix = "amp"

// Column names shared by the page-level tables.
const (
	ColPage        = "page"
	ColClicks      = "clics"
	ColImpressions = "impresiones"
	ColCTR         = "ctr"
	ColPosition    = "posición"
	ColSection     = "sección"
	ColSubsection  = "subsección"
	ColDate        = "fecha"
	ColMonth       = "mes"
	ColPhase       = "fase"
)

// CTR divides clicks by impressions; no impressions yields zero.
func CTR(clicks, impressions int64) float64 {
	if impressions == 0 {
		return 0
	}
	return float64(clicks) / float64(impressions)
}

// Totals is a clicks and impressions rollup for one key.
type Totals struct {
	Key         string
	Clicks      int64
	Impressions int64
}

// CTR recomputes the click-through rate of the rollup.
func (t Totals) CTR() float64 { return CTR(t.Clicks, t.Impressions) }

// GroupBy sums clicks and impressions per value of dim, in first-seen order.
// Results without dim collapse into a single blank key.
func GroupBy(res sc.Result, dim sc.Dimension) []Totals {
	idx := res.Index(dim)
	byKey := make(map[string]int)
	var out []Totals
	for _, row := range res.Rows {
		key := ""
		if idx >= 0 && idx < len(row.Keys) {
			key = row.Keys[idx]
		}
		pos, ok := byKey[key]
		if !ok {
			pos = len(out)
			byKey[key] = pos
			out = append(out, Totals{Key: key})
		}
		out[pos].Clicks += row.Clicks
		out[pos].Impressions += row.Impressions
	}
	return out
}

// Sum totals every row of res.
func Sum(res sc.Result) Totals {
	var t Totals
	for _, row := range res.Rows {
		t.Clicks += row.Clicks
		t.Impressions += row.Impressions
	}
	return t
}

// WeightedPosition averages position weighted by impressions.
func WeightedPosition(res sc.Result) float64 {
	var weighted float64
	var impressions int64
	for _, row := range res.Rows {
		weighted += row.Position * float64(row.Impressions)
		impressions += row.Impressions
	}
	if impressions == 0 {
		return 0
	}
	return weighted / float64(impressions)
}

// Section returns the first path segment of a page URL, lower-cased. A
// leading amp segment is skipped.
func Section(pageURL string) string {
	segs := pathSegments(pageURL)
	if len(segs) == 0 {
		return ""
	}
	return segs[0]
}

// Subsection returns the second path segment when the path has at least
// three segments, so an article directly under a section has none.
func Subsection(pageURL string) string {
	segs := pathSegments(pageURL)
	if len(segs) < 3 {
		return ""
	}
	return segs[1]
}

func pathSegments(pageURL string) []string {
	path := pageURL
	if u, err := url.Parse(pageURL); err == nil {
		path = u.Path
	}
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			segs = append(segs, s)
		}
	}
	if len(segs) > 0 && segs[0] == ampPrefix {
		segs = segs[1:]
	}
	return segs
}

// PagesTable renames page-level metrics and derives section columns.
func PagesTable(name string, res sc.Result) Table {
	t := Table{
		Name: name,
		Columns: []string{
			ColPage, ColClicks, ColImpressions, ColCTR, ColPosition, ColSection, ColSubsection,
		},
	}
	idx := res.Index(sc.DimPage)
	for _, row := range res.Rows {
		page := keyAt(row, idx)
		t.Rows = append(t.Rows, []any{
			page, row.Clicks, row.Impressions, row.CTR, row.Position, Section(page), Subsection(page),
		})
	}
	return t
}

// CountryMerge joins pre and post totals for one country.
type CountryMerge struct {
	Country string
	Pre     Totals
	Post    Totals
}

// MergeCountries outer-joins per-country totals. Countries missing on one
// side get zero metrics there. Pre-period countries come first in their
// order, then post-only countries.
func MergeCountries(pre, post []Totals) []CountryMerge {
	byKey := make(map[string]int, len(pre)+len(post))
	out := make([]CountryMerge, 0, len(pre)+len(post))
	for _, t := range pre {
		if pos, ok := byKey[t.Key]; ok {
			out[pos].Pre.Clicks += t.Clicks
			out[pos].Pre.Impressions += t.Impressions
			continue
		}
		byKey[t.Key] = len(out)
		out = append(out, CountryMerge{Country: t.Key, Pre: t, Post: Totals{Key: t.Key}})
	}
	for _, t := range post {
		if pos, ok := byKey[t.Key]; ok {
			out[pos].Post.Clicks += t.Clicks
			out[pos].Post.Impressions += t.Impressions
			continue
		}
		byKey[t.Key] = len(out)
		out = append(out, CountryMerge{Country: t.Key, Pre: Totals{Key: t.Key}, Post: t})
	}
	return out
}

// CountryTable renders merged countries with _pre and _post suffixes.
func CountryTable(name string, merged []CountryMerge) Table {
	t := Table{
		Name: name,
		Columns: []string{
			"country", "country_name",
			"clicks_pre", "impressions_pre", "ctr_pre",
			"clicks_post", "impressions_post", "ctr_post",
		},
	}
	for _, m := range merged {
		t.Rows = append(t.Rows, []any{
			m.Country, CountryName(m.Country),
			m.Pre.Clicks, m.Pre.Impressions, m.Pre.CTR(),
			m.Post.Clicks, m.Post.Impressions, m.Post.CTR(),
		})
	}
	return t
}

// DailyTotals groups by date in ascending order.
func DailyTotals(res sc.Result) []Totals {
	totals := GroupBy(res, sc.DimDate)
	sort.SliceStable(totals, func(i, j int) bool { return totals[i].Key < totals[j].Key })
	return totals
}

// DateTable renders a per-date rollup. When phase is not nil each date is
// tagged with the phase it returns.
func DateTable(name string, totals []Totals, phase func(date string) string) Table {
	t := Table{Name: name, Columns: []string{ColDate, ColClicks, ColImpressions, ColCTR}}
	if phase != nil {
		t.Columns = append(t.Columns, ColPhase)
	}
	for _, d := range totals {
		row := []any{d.Key, d.Clicks, d.Impressions, d.CTR()}
		if phase != nil {
			row = append(row, phase(d.Key))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func keyAt(row sc.Row, idx int) string {
	if idx < 0 || idx >= len(row.Keys) {
		return ""
	}
	return row.Keys[idx]
}
