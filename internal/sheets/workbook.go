package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joshsymonds/gscreport/internal/report"
)

const writerRole = "writer"

// Publisher creates one spreadsheet per run by copying a template.
type Publisher struct {
	Client    Client
	Templates map[string]string
	FolderID  string
	ShareWith []string
	Logger    *slog.Logger
}

// NewPublisher constructs a Publisher with a stderr logger when none is given.
func NewPublisher(
	client Client,
	templates map[string]string,
	folderID string,
	shareWith []string,
	logger *slog.Logger,
) *Publisher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Publisher{
		Client:    client,
		Templates: templates,
		FolderID:  folderID,
		ShareWith: shareWith,
		Logger:    logger,
	}
}

// Create copies the template configured for kind. Sharing failures are
// logged and do not fail the copy.
func (p *Publisher) Create(ctx context.Context, kind, title string) (*Workbook, error) {
	templateID := strings.TrimSpace(p.Templates[kind])
	if templateID == "" {
		return nil, fmt.Errorf("%w for %s", ErrMissingTemplate, kind)
	}
	doc, err := p.Client.CopyTemplate(ctx, templateID, title, p.FolderID)
	if err != nil {
		return nil, fmt.Errorf("copy template %s: %w", templateID, Classify(err))
	}
	for _, email := range p.ShareWith {
		if shareErr := p.Client.Share(ctx, doc.ID, email, writerRole); shareErr != nil {
			p.Logger.WarnContext(ctx, "share spreadsheet failed",
				slog.String("sheet_id", doc.ID),
				slog.String("email", email),
				slog.Any("error", shareErr),
			)
		}
	}
	return &Workbook{client: p.Client, doc: doc}, nil
}

// Workbook is a spreadsheet receiving report tables.
type Workbook struct {
	client Client
	doc    report.Document
}

// Document describes the spreadsheet.
func (w *Workbook) Document() report.Document { return w.doc }

// WriteTable creates the tab if needed, clears it and writes the table
// with its header.
func (w *Workbook) WriteTable(ctx context.Context, t report.Table) error {
	if err := w.client.EnsureTab(ctx, w.doc.ID, t.Name); err != nil {
		return fmt.Errorf("ensure tab %q: %w", t.Name, Classify(err))
	}
	if err := w.client.ReplaceValues(ctx, w.doc.ID, t.Name, t.Values()); err != nil {
		return fmt.Errorf("write tab %q: %w", t.Name, Classify(err))
	}
	return nil
}

// Close is a no-op; every write is already persisted.
func (w *Workbook) Close(ctx context.Context) error {
	_ = ctx
	return nil
}
