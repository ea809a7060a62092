// Package sheets writes report tables into Google Sheets copied from
// per-analysis templates, and appends the activity log.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"

	"github.com/joshsymonds/gscreport/internal/report"
)

// Client is the narrow Drive and Sheets surface required by gscreport.
type Client interface {
	CopyTemplate(ctx context.Context, templateID, title, folderID string) (report.Document, error)
	EnsureTab(ctx context.Context, spreadsheetID, tab string) error
	ReplaceValues(ctx context.Context, spreadsheetID, tab string, values [][]any) error
	AppendValues(ctx context.Context, spreadsheetID, tab string, values [][]any) error
	ReadValues(ctx context.Context, spreadsheetID, tab, cells string) ([][]any, error)
	Share(ctx context.Context, fileID, email, role string) error
}

var (
	// ErrMissingTemplate means no template is configured for the analysis kind.
	ErrMissingTemplate = errors.New("no spreadsheet template configured")
	// ErrPermission means the signed-in account cannot access a file or folder.
	ErrPermission = errors.New("permission denied")
	// ErrNotFound means a configured file or folder does not exist.
	ErrNotFound = errors.New("file or folder not found")
)

// Classify wraps Google API errors with ErrPermission or ErrNotFound so
// callers can tell access problems from configuration problems.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrPermission, err)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	default:
		return err
	}
}

// A1 builds an A1 range for a tab, quoting the title. An empty cells
// argument addresses the whole tab.
func A1(tab, cells string) string {
	quoted := "'" + strings.ReplaceAll(tab, "'", "''") + "'"
	if cells == "" {
		return quoted
	}
	return quoted + "!" + cells
}
