package spreadsheet

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/2beens/withings2weeks/internal/weekly"
	"github.com/2beens/withings2weeks/internal/weeks"
	"github.com/2beens/withings2weeks/pkg"

	"github.com/xuri/excelize/v2"
)

const (
	SheetName     = "Weekly Averages"
	FileExtension = ".xlsx"
	defaultSheet  = "Sheet1"
	numberFormat  = "0.00"
)

var (
	ErrWriteFailed  = errors.New("failed to write spreadsheet")
	ErrOutputExists = errors.New("refusing to overwrite existing file")
)

type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s '%s': %s", ErrWriteFailed, e.Path, e.Err)
}

func (e *WriteError) Is(target error) bool {
	return target == ErrWriteFailed
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// WriteXLSX writes the table as the only sheet of a new workbook at path.
// Cells without data are left empty.
func WriteXLSX(table weekly.Table, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(defaultSheet, SheetName); err != nil {
		return &WriteError{Path: path, Err: err}
	}

	header := make([]any, 0, len(table.Headers))
	for _, h := range table.Headers {
		header = append(header, h)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return &WriteError{Path: path, Err: err}
	}

	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	lastHeaderCell, err := excelize.CoordinatesToCellName(len(table.Headers), 1)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err := f.SetCellStyle(SheetName, "A1", lastHeaderCell, boldStyle); err != nil {
		return &WriteError{Path: path, Err: err}
	}

	for i, row := range table.Rows {
		weekCell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return &WriteError{Path: path, Err: err}
		}
		if err := f.SetCellStr(SheetName, weekCell, row.Week); err != nil {
			return &WriteError{Path: path, Err: err}
		}

		for j, c := range row.Cells {
			if c == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+2, i+2)
			if err != nil {
				return &WriteError{Path: path, Err: err}
			}
			if err := f.SetCellFloat(SheetName, cell, *c, -1, 64); err != nil {
				return &WriteError{Path: path, Err: err}
			}
		}
	}

	if len(table.Rows) > 0 {
		numStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: strPtr(numberFormat)})
		if err != nil {
			return &WriteError{Path: path, Err: err}
		}
		lastCell, err := excelize.CoordinatesToCellName(len(table.Headers), len(table.Rows)+1)
		if err != nil {
			return &WriteError{Path: path, Err: err}
		}
		if err := f.SetCellStyle(SheetName, "B2", lastCell, numStyle); err != nil {
			return &WriteError{Path: path, Err: err}
		}
	}

	if err := f.SetColWidth(SheetName, "A", "A", 14); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if len(table.Headers) > 1 {
		lastCol, err := excelize.ColumnNumberToName(len(table.Headers))
		if err != nil {
			return &WriteError{Path: path, Err: err}
		}
		if err := f.SetColWidth(SheetName, "B", lastCol, 18); err != nil {
			return &WriteError{Path: path, Err: err}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

func strPtr(s string) *string {
	return &s
}

// OutputPath picks where the workbook goes: the explicit path when given,
// else next to the input CSV as <stem>-pivot.xlsx, else a name derived from
// the week range. The extension is always forced to .xlsx.
func OutputPath(explicit, csvPath string, rng weeks.Range) string {
	var path string
	switch {
	case explicit != "":
		path = explicit
	case csvPath != "":
		stem := strings.TrimSuffix(filepath.Base(csvPath), filepath.Ext(csvPath))
		path = filepath.Join(filepath.Dir(csvPath), stem+"-pivot"+FileExtension)
	default:
		path = fmt.Sprintf("withings-%s-%s%s", rng.StartCode, rng.EndCode, FileExtension)
	}

	if strings.ToLower(filepath.Ext(path)) != FileExtension {
		path = pkg.ReplaceExt(path, FileExtension)
	}
	return path
}

// EnsureWritable refuses an existing output file unless overwrite is set.
func EnsureWritable(path string, overwrite bool) error {
	exists, err := pkg.PathExists(path, false)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if exists && !overwrite {
		return fmt.Errorf("%w: %s (use --overwrite)", ErrOutputExists, path)
	}
	return nil
}
