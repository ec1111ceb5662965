// Package importer loads takeoff sheets and bid tabs from XLSX workbooks
// into the store's snapshot model.
package importer

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// readSheet reads the first sheet of an XLSX workbook as string rows,
// skipping the given number of header rows.
func readSheet(path string, skipRows int) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "importer: open %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("importer: %s has no sheets", path)
	}

	var rows [][]string
	for i, row := range f.Sheets[0].Rows {
		if i < skipRows {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = strings.TrimSpace(cell.String())
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// cell returns column i of a row, or "" when the row is short.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// parseFloat parses a spreadsheet number, tolerating currency symbols and
// thousands separators. Returns nil for an empty cell.
func parseFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "importer: parse number %q", s)
	}
	return &f, nil
}

// isBlank reports whether every cell in the row is empty.
func isBlank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}
