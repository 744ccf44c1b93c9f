package parser

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Format identifies which extraction strategy applies to a workbook.
type Format string

const (
	// FormatOmnitracs is the fixed-position multi-row Roadnet export.
	FormatOmnitracs Format = "omnitracs"
	// FormatPOC is the flat header-labeled export (POC_* files).
	FormatPOC Format = "poc"
)

// DetectFormat picks an extraction strategy from the uploaded file name.
// POC exports are named with a "POC_" prefix; everything else is treated as
// an Omnitracs report.
func DetectFormat(fileName string) Format {
	base := strings.ToUpper(filepath.Base(fileName))
	if strings.HasPrefix(base, "POC_") || strings.HasPrefix(base, "POC ") {
		return FormatPOC
	}
	return FormatOmnitracs
}

// ReadSheet opens a workbook from raw bytes and returns the first sheet as
// a dense 2-D grid of cell strings. Blank cells come back as empty strings;
// short rows are returned as-is (extractors pad on access).
func ReadSheet(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheetName, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheetName)
	}

	return rows, nil
}

// cell returns the trimmed value at (row, col) of a sheet grid, treating
// missing rows and short rows as blank. All positional extraction goes
// through here so offset handling degrades to empty fields, never a panic.
func cell(rows [][]string, row, col int) string {
	if row < 0 || row >= len(rows) {
		return ""
	}
	r := rows[row]
	if col < 0 || col >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[col])
}

// rowWindow is a fixed-base view over the rows of one multi-row record.
// Offsets are relative to the record's start row; reads past the end of
// the sheet yield empty strings.
type rowWindow struct {
	rows [][]string
	base int
}

func newRowWindow(rows [][]string, base int) rowWindow {
	return rowWindow{rows: rows, base: base}
}

// cell reads the cell at the given row offset and column.
func (w rowWindow) cell(offset, col int) string {
	return cell(w.rows, w.base+offset, col)
}

// row returns the raw row at the given offset, or nil past the sheet end.
func (w rowWindow) row(offset int) []string {
	idx := w.base + offset
	if idx < 0 || idx >= len(w.rows) {
		return nil
	}
	return w.rows[idx]
}
