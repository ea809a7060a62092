package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joshsymonds/gscreport/internal/report"
)

// ErrNoOutput is returned by RunReport.Err when no tab received data.
var ErrNoOutput = errors.New("analysis wrote no data")

// NoticeLevel classifies a non-fatal run event.
type NoticeLevel string

// Notice levels.
const (
	NoticeEmpty   NoticeLevel = "empty"
	NoticePartial NoticeLevel = "partial"
	NoticeSkipped NoticeLevel = "skipped"
)

// Notice is a per-slice message surfaced to the user.
type Notice struct {
	Tab     string      `json:"tab,omitempty"`
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// AnalysisRun identifies one run and the document it produced.
type AnalysisRun struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	Site       string          `json:"site"`
	Title      string          `json:"title"`
	Document   report.Document `json:"document"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// TabReport records a written tab and its data row count.
type TabReport struct {
	Name string `json:"name"`
	Rows int    `json:"rows"`
}

// RunReport is the outcome of a run. WroteAny is true once any report tab
// received at least one data row; the settings tab does not count.
type RunReport struct {
	Run      AnalysisRun `json:"run"`
	Tabs     []TabReport `json:"tabs"`
	Notices  []Notice    `json:"notices"`
	WroteAny bool        `json:"wrote_any"`
}

// Err reports ErrNoOutput when the run produced no data.
func (r RunReport) Err() error {
	if !r.WroteAny {
		return fmt.Errorf("%w: %s", ErrNoOutput, r.Run.Document.URL)
	}
	return nil
}

// PrintHuman writes a readable report to the provided writer.
func PrintHuman(rep RunReport, w io.Writer) error {
	if w == nil {
		w = os.Stdout
	}
	var builder strings.Builder
	fmt.Fprintf(&builder, "gscreport %s: %s\n", rep.Run.Kind, rep.Run.Site)
	if rep.Run.Document.URL != "" {
		fmt.Fprintf(&builder, "  %s\n  %s\n", rep.Run.Document.Name, rep.Run.Document.URL)
	}
	if len(rep.Tabs) > 0 {
		builder.WriteString("\nTabs:\n")
		for _, t := range rep.Tabs {
			fmt.Fprintf(&builder, "  %-30s %6d rows\n", t.Name, t.Rows)
		}
	}
	if len(rep.Notices) > 0 {
		builder.WriteString("\nNotices:\n")
		for _, n := range rep.Notices {
			if n.Tab != "" {
				fmt.Fprintf(&builder, "  [%s] %s: %s\n", n.Level, n.Tab, n.Message)
				continue
			}
			fmt.Fprintf(&builder, "  [%s] %s\n", n.Level, n.Message)
		}
	}
	if !rep.WroteAny {
		builder.WriteString("\nNo data was written for this run.\n")
	}
	if _, err := io.WriteString(w, builder.String()); err != nil {
		return fmt.Errorf("write human report: %w", err)
	}
	return nil
}

// WriteJSON serializes the report under the working directory and returns
// the path written. When path names a directory the file is called
// <kind>-<run id>.json.
func WriteJSON(rep RunReport, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("json path must not be empty")
	}
	clean := filepath.Clean(strings.TrimSpace(path))
	if filepath.IsAbs(clean) {
		return "", fmt.Errorf("json path must be relative, got %s", clean)
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("json path %s escapes working directory", clean)
	}
	if info, err := os.Stat(clean); err == nil && info.IsDir() {
		clean = filepath.Join(clean, rep.fileName())
	}
	f, err := os.OpenFile(clean, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // #nosec G304
	if err != nil {
		return "", fmt.Errorf("create run report: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if encodeErr := enc.Encode(rep); encodeErr != nil {
		_ = f.Close()
		return "", fmt.Errorf("encode run %s: %w", rep.Run.ID, encodeErr)
	}
	if closeErr := f.Close(); closeErr != nil {
		return "", fmt.Errorf("close run report: %w", closeErr)
	}
	return clean, nil
}

func (rep RunReport) fileName() string {
	id := rep.Run.ID
	if id == "" {
		id = "run"
	}
	return string(rep.Run.Kind) + "-" + id + ".json"
}
