package httphandler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	errUnsupportedUpload = errors.New("unsupported file type, upload .csv or .xlsx")
	errEmptySpreadsheet  = errors.New("spreadsheet has no header row")
)

// ParseSpreadsheet turns an uploaded .csv or .xlsx file into header-keyed
// rows for the import reconciler. Only the first sheet of a workbook is read.
func ParseSpreadsheet(filename string, r io.Reader) ([]map[string]any, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return parseCSV(r)
	case ".xlsx":
		return parseXLSX(r)
	default:
		return nil, errUnsupportedUpload
	}
}

func parseCSV(r io.Reader) ([]map[string]any, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return recordsToRows(records)
}

func parseXLSX(r io.Reader) ([]map[string]any, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errEmptySpreadsheet
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return recordsToRows(records)
}

// recordsToRows keys every data record by the header row. Blank header
// cells are dropped, a repeated header keeps its first non-empty value,
// and records with no non-empty cell are skipped.
func recordsToRows(records [][]string) ([]map[string]any, error) {
	if len(records) == 0 {
		return nil, errEmptySpreadsheet
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	rows := make([]map[string]any, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]any, len(header))
		blank := true
		for i, key := range header {
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			val := ""
			if i < len(rec) {
				val = rec[i]
			}
			if strings.TrimSpace(val) != "" {
				blank = false
			}
			if prev, ok := row[key].(string); ok && prev != "" {
				continue
			}
			row[key] = val
		}
		if !blank {
			rows = append(rows, row)
		}
	}
	return rows, nil
}
