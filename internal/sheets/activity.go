package sheets

import (
	"context"
	"errors"
	"fmt"

	"github.com/joshsymonds/gscreport/internal/report"
)

// DefaultActivityTab is the log tab used when none is configured.
const DefaultActivityTab = "Log"

// ActivityLog appends run entries to a shared log spreadsheet.
type ActivityLog struct {
	Client        Client
	SpreadsheetID string
	Tab           string
}

// Append writes entry as a new row, writing the header first when the
// tab is empty.
func (a *ActivityLog) Append(ctx context.Context, entry report.ActivityEntry) error {
	if a.SpreadsheetID == "" {
		return errors.New("activity log spreadsheet not configured")
	}
	tab := a.Tab
	if tab == "" {
		tab = DefaultActivityTab
	}
	if err := a.Client.EnsureTab(ctx, a.SpreadsheetID, tab); err != nil {
		return fmt.Errorf("ensure activity tab: %w", Classify(err))
	}
	existing, err := a.Client.ReadValues(ctx, a.SpreadsheetID, tab, "A1:J1")
	if err != nil {
		return fmt.Errorf("read activity header: %w", Classify(err))
	}
	rows := [][]any{entry.Values()}
	if len(existing) == 0 {
		rows = append([][]any{report.ActivityHeader()}, rows...)
	}
	if appendErr := a.Client.AppendValues(ctx, a.SpreadsheetID, tab, rows); appendErr != nil {
		return fmt.Errorf("append activity: %w", Classify(appendErr))
	}
	return nil
}
