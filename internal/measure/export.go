package measure

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
)

var (
	ErrMissingColumns  = errors.New("missing required columns")
	ErrUnparseableDate = errors.New("unparseable date")
	ErrInvalidValue    = errors.New("invalid metric value")
)

const dateColumn = "Date"

// exportColumns maps the canonical Withings export header onto a sample slot.
var exportColumns = []struct {
	name   string
	metric Metric
}{
	{"Weight (kg)", Weight},
	{"Fat mass (kg)", FatMass},
	{"Muscle mass (kg)", MuscleMass},
	{"Bone mass (kg)", BoneMass},
	{"Hydration (kg)", Hydration},
}

// headerAliases covers the capitalisations seen across export versions.
var headerAliases = map[string]string{
	"Weight (Kg)":      "Weight (kg)",
	"Weight (KG)":      "Weight (kg)",
	"Fat Mass (kg)":    "Fat mass (kg)",
	"Muscle Mass (kg)": "Muscle mass (kg)",
	"Bone Mass (kg)":   "Bone mass (kg)",
	"Hydration (Kg)":   "Hydration (kg)",
	"Hydration (KG)":   "Hydration (kg)",
}

// nullTokens are the usual spreadsheet markers for a missing value, read as
// an empty cell.
var nullTokens = map[string]struct{}{
	"#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {},
	"N/A": {}, "NA": {}, "NULL": {}, "NaN": {}, "None": {},
	"n/a": {}, "nan": {}, "null": {},
}

type dateLayout struct {
	layout string
	// zoned layouts carry their own offset, the timestamp keeps it
	zoned bool
}

var exportDateLayouts = []dateLayout{
	{layout: "2006-01-02 15:04:05"},
	{layout: time.RFC3339, zoned: true},
	{layout: "2006-01-02T15:04:05"},
	{layout: "2006-01-02"},
	{layout: "2006/01/02"},
}

type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingColumns, strings.Join(e.Columns, ", "))
}

func (e *MissingColumnsError) Unwrap() error {
	return ErrMissingColumns
}

// CellRef points at a single offending cell. Row 1 is the header.
type CellRef struct {
	Row    int
	Column string
	Value  string
}

func (c CellRef) String() string {
	return fmt.Sprintf("row %d %s=%q", c.Row, c.Column, c.Value)
}

type UnparseableDateError struct {
	Cells []CellRef
}

func (e *UnparseableDateError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnparseableDate, joinCells(e.Cells))
}

func (e *UnparseableDateError) Unwrap() error {
	return ErrUnparseableDate
}

type InvalidValueError struct {
	Cells []CellRef
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidValue, joinCells(e.Cells))
}

func (e *InvalidValueError) Unwrap() error {
	return ErrInvalidValue
}

func joinCells(cells []CellRef) string {
	parts := make([]string, 0, len(cells))
	for _, c := range cells {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, "; ")
}

// ReadExport reads a Withings weight CSV export. Date-only values are taken
// as midnight in loc, and so are timestamps without an offset.
func ReadExport(r io.Reader, loc *time.Location) ([]Sample, error) {
	if loc == nil {
		loc = time.Local
	}

	reader := csv.NewReader(skipBOM(r))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &MissingColumnsError{Columns: requiredColumns()}
	}
	if err != nil {
		return nil, fmt.Errorf("read export header: %w", err)
	}

	colIndex := make(map[string]int, len(header))
	for i, name := range header {
		colIndex[canonicalHeader(name)] = i
	}

	var missing []string
	for _, name := range requiredColumns() {
		if _, ok := colIndex[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	var samples []Sample
	var badDates, badValues []CellRef
	rowNumber := 1
	dateIdx := colIndex[dateColumn]
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read export row %d: %w", rowNumber+1, err)
		}
		rowNumber++

		if isBlankRecord(record) {
			continue
		}

		rawDate := cell(record, dateIdx)
		ts, ok := parseExportDate(rawDate, loc)
		if !ok {
			badDates = append(badDates, CellRef{Row: rowNumber, Column: dateColumn, Value: rawDate})
		}

		values := make(map[Metric]float64, len(exportColumns))
		for _, col := range exportColumns {
			raw := cell(record, colIndex[col.name])
			if isNullCell(raw) {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				badValues = append(badValues, CellRef{Row: rowNumber, Column: col.name, Value: raw})
				continue
			}
			values[col.metric] = v
		}

		samples = append(samples, Sample{
			Timestamp: ts,
			GroupID:   int64(rowNumber),
			Values:    values,
		})
	}

	var errs error
	if len(badDates) > 0 {
		errs = multierr.Append(errs, &UnparseableDateError{Cells: badDates})
	}
	if len(badValues) > 0 {
		errs = multierr.Append(errs, &InvalidValueError{Cells: badValues})
	}
	if errs != nil {
		return nil, errs
	}

	SortByTimestamp(samples)
	return samples, nil
}

func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(3); err == nil && string(prefix) == "\ufeff" {
		_, _ = br.Discard(3)
	}
	return br
}

func requiredColumns() []string {
	cols := []string{dateColumn}
	for _, c := range exportColumns {
		cols = append(cols, c.name)
	}
	return cols
}

func canonicalHeader(name string) string {
	name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
	if canonical, ok := headerAliases[name]; ok {
		return canonical
	}
	return name
}

// parseExportDate reads naive timestamps in loc. Timestamps with an explicit
// offset are kept in that offset so their calendar day does not move.
func parseExportDate(raw string, loc *time.Location) (time.Time, bool) {
	for _, l := range exportDateLayouts {
		t, err := time.ParseInLocation(l.layout, raw, loc)
		if err != nil {
			continue
		}
		if l.zoned {
			return t, true
		}
		return t.In(loc), true
	}
	return time.Time{}, false
}

func isNullCell(raw string) bool {
	if raw == "" {
		return true
	}
	_, ok := nullTokens[raw]
	return ok
}

func cell(record []string, idx int) string {
	if idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
