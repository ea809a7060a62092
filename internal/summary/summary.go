// Package summary asks a language model for a short written reading of
// audit results.
package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joshsymonds/gscreport/internal/report"
	"github.com/joshsymonds/gscreport/internal/window"
)

// TabName is the tab receiving the model's answer.
const TabName = "Resumen IA"

const systemPrompt = "Eres un analista SEO. Resume en español, en párrafos breves, " +
	"la evolución del tráfico orgánico descrita por los datos. Señala tendencias, " +
	"caídas o subidas relevantes y las páginas que más contribuyen. No inventes datos."

// Section is the audit output for one data type.
type Section struct {
	Label   string
	Periods []report.PeriodMetrics
	Movers  []report.Mover
}

// Input is everything the prompt is built from.
type Input struct {
	Site     string
	Sections []Section
}

// Summarizer turns audit tables into a written summary.
type Summarizer struct {
	Provider Completer
	Logger   *slog.Logger
}

// New constructs a Summarizer with a stderr logger when none is given.
func New(provider Completer, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Summarizer{Provider: provider, Logger: logger}
}

// Summarize returns the model's answer split into paragraphs.
func (s *Summarizer) Summarize(ctx context.Context, in Input) ([]string, error) {
	if s.Provider == nil {
		return nil, errors.New("no language model configured")
	}
	prompt := BuildPrompt(in)
	s.Logger.DebugContext(ctx, "requesting summary", slog.Int("prompt_bytes", len(prompt)))
	answer, err := s.Provider.GenerateResponse(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}
	paragraphs := Paragraphs(answer)
	if len(paragraphs) == 0 {
		return nil, errors.New("summarize: empty answer")
	}
	return paragraphs, nil
}

// BuildPrompt renders the audit data as compact text.
func BuildPrompt(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sitio: %s\n", in.Site)
	for _, sec := range in.Sections {
		fmt.Fprintf(&b, "\n## %s\n", sec.Label)
		b.WriteString("periodo | rango | clics | impresiones | ctr | posición\n")
		for _, p := range sec.Periods {
			fmt.Fprintf(&b, "%s | %s..%s | %d | %d | %.2f%% | %.1f",
				p.Period.Label,
				p.Period.Start.Format(window.DateLayout),
				p.Period.End.Format(window.DateLayout),
				p.Totals.Clicks,
				p.Totals.Impressions,
				p.Totals.CTR()*100,
				p.Position,
			)
			if p.Sessions != nil {
				fmt.Fprintf(&b, " | sesiones %d", *p.Sessions)
			}
			b.WriteString("\n")
		}
		if len(sec.Movers) > 0 {
			b.WriteString("páginas principales (clics actual / anterior):\n")
			for _, m := range sec.Movers {
				fmt.Fprintf(&b, "- %s: %d / %d\n", m.Page, m.Current, m.Previous)
			}
		}
	}
	return b.String()
}

// Paragraphs splits text on blank lines, trimming each paragraph.
func Paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, part := range strings.Split(text, "\n\n") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Table renders paragraphs as a one-column tab.
func Table(paragraphs []string) report.Table {
	t := report.Table{Name: TabName, Columns: []string{"Resumen"}}
	for _, p := range paragraphs {
		t.Rows = append(t.Rows, []any{p})
	}
	return t
}
