// Package xlsx writes report tables into a local Excel workbook, one
// worksheet per table.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/joshsymonds/gscreport/internal/report"
)

const (
	defaultSheet  = "Sheet1"
	maxSheetName  = 31
	fileExtension = ".xlsx"
)

var sheetNameReplacer = strings.NewReplacer(
	"[", "(", "]", ")", ":", "-", "*", "-", "?", "", "/", "-", "\\", "-",
)

// Publisher creates one workbook per run inside Dir.
type Publisher struct {
	Dir string
}

// Create starts a new workbook. kind is recorded in the file name.
func (p *Publisher) Create(ctx context.Context, kind, title string) (*Workbook, error) {
	_ = ctx
	if strings.TrimSpace(p.Dir) == "" {
		return nil, errors.New("xlsx output directory not configured")
	}
	if err := os.MkdirAll(p.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(p.Dir, fileName(kind, title))
	return &Workbook{
		file: excelize.NewFile(),
		path: path,
		doc:  report.Document{ID: path, Name: title, URL: "file://" + path},
	}, nil
}

// Workbook accumulates tables until Close saves it.
type Workbook struct {
	file    *excelize.File
	path    string
	doc     report.Document
	written int
}

// Document describes the output file.
func (w *Workbook) Document() report.Document { return w.doc }

// WriteTable replaces the worksheet for t with its header and rows.
func (w *Workbook) WriteTable(ctx context.Context, t report.Table) error {
	_ = ctx
	name := SheetName(t.Name)
	idx, err := w.file.GetSheetIndex(name)
	if err != nil {
		return fmt.Errorf("lookup sheet %q: %w", name, err)
	}
	switch {
	case idx >= 0:
		if clearErr := w.clear(name); clearErr != nil {
			return clearErr
		}
	case w.written == 0:
		if renameErr := w.file.SetSheetName(defaultSheet, name); renameErr != nil {
			return fmt.Errorf("rename sheet %q: %w", name, renameErr)
		}
	default:
		if _, newErr := w.file.NewSheet(name); newErr != nil {
			return fmt.Errorf("create sheet %q: %w", name, newErr)
		}
	}
	for i, row := range t.Values() {
		cell, cellErr := excelize.CoordinatesToCellName(1, i+1)
		if cellErr != nil {
			return fmt.Errorf("cell name: %w", cellErr)
		}
		values := row
		if setErr := w.file.SetSheetRow(name, cell, &values); setErr != nil {
			return fmt.Errorf("write row %d of %q: %w", i+1, name, setErr)
		}
	}
	w.written++
	return nil
}

func (w *Workbook) clear(name string) error {
	rows, err := w.file.GetRows(name)
	if err != nil {
		return fmt.Errorf("read sheet %q: %w", name, err)
	}
	for r := len(rows); r > 0; r-- {
		if rmErr := w.file.RemoveRow(name, r); rmErr != nil {
			return fmt.Errorf("clear sheet %q: %w", name, rmErr)
		}
	}
	return nil
}

// Close saves the workbook to disk and releases it.
func (w *Workbook) Close(ctx context.Context) error {
	_ = ctx
	defer func() { _ = w.file.Close() }()
	if err := w.file.SaveAs(w.path); err != nil {
		return fmt.Errorf("save %s: %w", w.path, err)
	}
	return nil
}

// SheetName makes a table name valid as a worksheet name.
func SheetName(name string) string {
	name = strings.TrimSpace(sheetNameReplacer.Replace(name))
	name = strings.Trim(name, "'")
	if name == "" {
		return "Tabla"
	}
	for utf8.RuneCountInString(name) > maxSheetName {
		_, size := utf8.DecodeLastRuneInString(name)
		name = name[:len(name)-size]
	}
	return name
}

func fileName(kind, title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(kind + "-" + title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ', r == '.', r == ':', r == '/':
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-") + fileExtension
}
