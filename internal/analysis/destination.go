package analysis

import (
	"context"

	"github.com/joshsymonds/gscreport/internal/sheets"
	"github.com/joshsymonds/gscreport/internal/xlsx"
)

// SheetsPublisher writes runs to a copy of the kind's spreadsheet template.
type SheetsPublisher struct {
	*sheets.Publisher
}

// Create copies the template for kind.
func (p SheetsPublisher) Create(ctx context.Context, kind Kind, title string) (Destination, error) {
	wb, err := p.Publisher.Create(ctx, string(kind), title)
	if err != nil {
		return nil, err
	}
	return wb, nil
}

// XLSXPublisher writes runs to local Excel files.
type XLSXPublisher struct {
	*xlsx.Publisher
}

// Create starts a new workbook for kind.
func (p XLSXPublisher) Create(ctx context.Context, kind Kind, title string) (Destination, error) {
	wb, err := p.Publisher.Create(ctx, string(kind), title)
	if err != nil {
		return nil, err
	}
	return wb, nil
}

var (
	_ Publisher = SheetsPublisher{}
	_ Publisher = XLSXPublisher{}
)
