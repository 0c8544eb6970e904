// Package importer reads word lists from spreadsheets into the local cache and writes them back out.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/xuri/excelize/v2"

	"github.com/and161185/wordkeeper/internal/errs"
	"github.com/and161185/wordkeeper/internal/model"
	"github.com/and161185/wordkeeper/internal/vocab"
)

// Column order of an import/export row.
const (
	colLemma = iota
	colTranslation
	colPartOfSpeech
	colArticle
	colImageURL
)

// Header is the first row written by Export and skipped by imports.
var Header = []string{"lemma", "translation", "part_of_speech", "article", "image_url"}

// Adder stores one new word; *vocab.Service implements it.
type Adder interface {
	Add(ctx context.Context, in vocab.NewItem) (*model.VocabularyItem, error)
}

// Options control an import.
type Options struct {
	OwnerID      uuid.UUID
	CollectionID uuid.NullUUID
	// Sheet to read from an .xlsx file; empty means the first sheet.
	Sheet string
	// NoHeader treats the first row as data.
	NoHeader bool
}

// Result summarises an import. Rows that were blank, duplicates or invalid are skipped.
type Result struct {
	Processed int
	Added     int
	Skipped   int
	Errors    []string
}

// ImportFile picks the reader by extension: .csv or .xlsx.
func ImportFile(ctx context.Context, a Adder, path string, o Options) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("importer: open: %w", err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return ImportCSV(ctx, a, f, o)
	case ".xlsx", ".xlsm":
		return ImportXLSX(ctx, a, f, o)
	default:
		return nil, fmt.Errorf("importer: unsupported file type %q", ext)
	}
}

// ImportCSV reads comma-separated rows.
func ImportCSV(ctx context.Context, a Adder, r io.Reader, o Options) (*Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	res := &Result{}
	for line := 1; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return res, fmt.Errorf("importer: csv: %w", err)
		}
		if line == 1 && !o.NoHeader {
			continue
		}
		if err := addRow(ctx, a, o, row, line, res); err != nil {
			return res, err
		}
	}
}

// ImportXLSX reads rows from one sheet of a workbook.
func ImportXLSX(ctx context.Context, a Adder, r io.Reader, o Options) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("importer: xlsx: %w", err)
	}
	defer f.Close()

	sheet := o.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("importer: sheet %q: %w", sheet, err)
	}

	res := &Result{}
	for i, row := range rows {
		if i == 0 && !o.NoHeader {
			continue
		}
		if err := addRow(ctx, a, o, row, i+1, res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

// addRow returns an error only for failures that should stop the import.
func addRow(ctx context.Context, a Adder, o Options, row []string, line int, res *Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lemma := cell(row, colLemma)
	if lemma == "" {
		res.Skipped++
		return nil
	}
	res.Processed++
	_, err := a.Add(ctx, vocab.NewItem{
		OwnerID:      o.OwnerID,
		CollectionID: o.CollectionID,
		Lemma:        lemma,
		Translation:  cell(row, colTranslation),
		PartOfSpeech: cell(row, colPartOfSpeech),
		Article:      cell(row, colArticle),
		ImageURL:     cell(row, colImageURL),
	})
	switch {
	case err == nil:
		res.Added++
	case errors.Is(err, errs.ErrDuplicate):
		res.Skipped++
	case errors.Is(err, errs.ErrValidation):
		res.Skipped++
		res.Errors = append(res.Errors, fmt.Sprintf("row %d: %v", line, err))
	default:
		return fmt.Errorf("importer: row %d: %w", line, err)
	}
	return nil
}

// Export writes items as an .xlsx workbook with a header row.
func Export(w io.Writer, items []model.VocabularyItem) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("importer: export header: %w", err)
	}
	for i, it := range items {
		addr, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{it.Lemma, it.Translation, it.PartOfSpeech, it.Article, it.ImageURL}
		if err := f.SetSheetRow(sheet, addr, &row); err != nil {
			return fmt.Errorf("importer: export row %d: %w", i+2, err)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("importer: write xlsx: %w", err)
	}
	return nil
}
