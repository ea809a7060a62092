package report

import (
	"time"
)

// ConfigTabName is the tab holding the run's resolved parameters.
const ConfigTabName = "Configuración"

// Setting is one Configuración/Valor pair.
type Setting struct {
	Key   string
	Value any
}

// ConfigTable renders the fixed two-column settings table.
func ConfigTable(settings []Setting) Table {
	t := Table{Name: ConfigTabName, Columns: []string{"Configuración", "Valor"}}
	for _, s := range settings {
		t.Rows = append(t.Rows, []any{s.Key, s.Value})
	}
	return t
}

// ActivityColumns is the fixed activity log schema.
var ActivityColumns = []string{
	"timestamp", "user_email", "event", "site_url", "analysis_kind",
	"sheet_id", "sheet_name", "sheet_url", "gsc_account", "notes",
}

// ActivityEntry is one append-only activity log row.
type ActivityEntry struct {
	Timestamp    time.Time `json:"timestamp"`
	UserEmail    string    `json:"user_email"`
	Event        string    `json:"event"`
	SiteURL      string    `json:"site_url"`
	AnalysisKind string    `json:"analysis_kind"`
	SheetID      string    `json:"sheet_id"`
	SheetName    string    `json:"sheet_name"`
	SheetURL     string    `json:"sheet_url"`
	GSCAccount   string    `json:"gsc_account"`
	Notes        string    `json:"notes"`
}

// Values returns the entry in ActivityColumns order.
func (e ActivityEntry) Values() []any {
	return []any{
		e.Timestamp.UTC().Format(time.RFC3339),
		e.UserEmail,
		e.Event,
		e.SiteURL,
		e.AnalysisKind,
		e.SheetID,
		e.SheetName,
		e.SheetURL,
		e.GSCAccount,
		e.Notes,
	}
}

// ActivityHeader returns ActivityColumns as a row.
func ActivityHeader() []any {
	out := make([]any, len(ActivityColumns))
	for i, c := range ActivityColumns {
		out[i] = c
	}
	return out
}
