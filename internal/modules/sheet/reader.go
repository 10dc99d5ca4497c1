// README: Spreadsheet decoding (.xlsx via excelize, .xls via extrame/xls) into a cell grid.
package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFile rejects uploads whose extension is not a spreadsheet type.
var ErrUnsupportedFile = errors.New("unsupported file type: expected .xlsx or .xls")

var errEmptySheet = errors.New("spreadsheet has no rows")

// ParseError reports content that could not be read as tabular data. The
// whole file is rejected.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// CheckExtension runs before any decoding.
func CheckExtension(fileName string) error {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xls":
		return nil
	default:
		return ErrUnsupportedFile
	}
}

// BaseName strips directory and extension; it names a route whose sheet
// carries no route-name column value.
func BaseName(fileName string) string {
	base := filepath.Base(fileName)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Parse decodes the first worksheet of data and extracts a Draft.
func Parse(fileName string, data []byte) (Draft, error) {
	if err := CheckExtension(fileName); err != nil {
		return Draft{}, err
	}
	grid, err := ReadGrid(fileName, data)
	if err != nil {
		return Draft{}, &ParseError{File: fileName, Err: err}
	}
	if len(grid) == 0 {
		return Draft{}, &ParseError{File: fileName, Err: errEmptySheet}
	}
	return Extract(grid), nil
}

// ReadGrid returns the first worksheet as rows of cell strings.
func ReadGrid(fileName string, data []byte) ([][]string, error) {
	if strings.EqualFold(filepath.Ext(fileName), ".xls") {
		return readXLS(data)
	}
	return readXLSX(data)
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errEmptySheet
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	return padToHeader(rows), nil
}

// padToHeader restores trailing empty cells, which excelize omits, up to the
// header's width.
func padToHeader(rows [][]string) [][]string {
	if len(rows) == 0 {
		return rows
	}
	width := len(rows[0])
	for i, r := range rows {
		if len(r) > 0 && len(r) < width {
			rows[i] = append(r, make([]string, width-len(r))...)
		}
	}
	return rows
}

func readXLS(data []byte) (grid [][]string, err error) {
	// The legacy BIFF reader panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			grid, err = nil, fmt.Errorf("corrupt xls: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	// A compound file without a Workbook stream yields no error and no book.
	if wb == nil {
		return nil, errEmptySheet
	}
	ws := wb.GetSheet(0)
	if ws == nil {
		return nil, errEmptySheet
	}
	for i := 0; i <= int(ws.MaxRow); i++ {
		row := ws.Row(i)
		if row == nil {
			grid = append(grid, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for j := row.FirstCol(); j < row.LastCol(); j++ {
			cells[j] = row.Col(j)
		}
		grid = append(grid, cells)
	}
	return grid, nil
}
