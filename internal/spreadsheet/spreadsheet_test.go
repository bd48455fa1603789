package spreadsheet_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/2beens/withings2weeks/internal/measure"
	"github.com/2beens/withings2weeks/internal/spreadsheet"
	"github.com/2beens/withings2weeks/internal/weekly"
	"github.com/2beens/withings2weeks/internal/weeks"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// trimRow drops trailing empty cells.
func trimRow(row []string) []string {
	for len(row) > 0 && row[len(row)-1] == "" {
		row = row[:len(row)-1]
	}
	return row
}

func testTable() weekly.Table {
	ts := func(d int) time.Time { return time.Date(2024, 1, d, 8, 0, 0, 0, time.UTC) }
	return weekly.Aggregate([]measure.Sample{
		{Timestamp: ts(1), GroupID: 1, Values: map[measure.Metric]float64{measure.Weight: 80, measure.FatMass: 15.5}},
		{Timestamp: ts(2), GroupID: 2, Values: map[measure.Metric]float64{measure.Weight: 81}},
		{Timestamp: ts(9), GroupID: 3, Values: map[measure.Metric]float64{measure.Weight: 79.25, measure.BoneMass: 3.1}},
	})
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, spreadsheet.WriteXLSX(testTable(), path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Weekly Averages"}, f.GetSheetList())

	rows, err := f.GetRows(spreadsheet.SheetName, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Week number", "Weight (kg)", "Muscle mass (kg)", "Hydration (kg)", "Fat mass (kg)", "Bone mass (kg)"}, rows[0])
	assert.Equal(t, []string{"2024W01", "80.5", "", "", "15.5"}, trimRow(rows[1]))
	assert.Equal(t, []string{"2024W02", "79.25", "", "", "", "3.1"}, trimRow(rows[2]))
}

func TestWriteXLSX_EmptyTableKeepsHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, spreadsheet.WriteXLSX(weekly.Aggregate(nil), path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(spreadsheet.SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, weekly.Headers(), rows[0])
}

func TestWriteXLSX_Failure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "out.xlsx")
	err := spreadsheet.WriteXLSX(testTable(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, spreadsheet.ErrWriteFailed)
	assert.Contains(t, err.Error(), path)
}

func TestPrint(t *testing.T) {
	out := &bytes.Buffer{}
	require.NoError(t, spreadsheet.Print(out, testTable()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(lines[0]), "Week number"))
	assert.Equal(t, []string{"2024W01", "80.50", "-", "-", "15.50", "-"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"2024W02", "79.25", "-", "-", "-", "3.10"}, strings.Fields(lines[2]))
	// right aligned columns end at the same offset
	assert.Equal(t, len(lines[1]), len(lines[2]))
}

func TestPrint_Empty(t *testing.T) {
	out := &bytes.Buffer{}
	require.NoError(t, spreadsheet.Print(out, weekly.Aggregate(nil)))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "Bone mass (kg)")
}

func TestOutputPath(t *testing.T) {
	rng := weeks.Range{StartCode: "2024W01", EndCode: "2024W10"}

	assert.Equal(t, "report.xlsx", spreadsheet.OutputPath("report.xlsx", "", rng))
	assert.Equal(t, "report.xlsx", spreadsheet.OutputPath("report.ods", "/data/weights.csv", rng))
	assert.Equal(t, "report.xlsx", spreadsheet.OutputPath("report", "", rng))
	assert.Equal(t, "REPORT.XLSX", spreadsheet.OutputPath("REPORT.XLSX", "", rng))
	assert.Equal(t, filepath.Join("/data", "weights-pivot.xlsx"), spreadsheet.OutputPath("", "/data/weights.csv", rng))
	assert.Equal(t, "withings-2024W01-2024W10.xlsx", spreadsheet.OutputPath("", "", rng))
}

func TestEnsureWritable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	assert.NoError(t, spreadsheet.EnsureWritable(path, false))

	require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))
	err := spreadsheet.EnsureWritable(path, false)
	assert.ErrorIs(t, err, spreadsheet.ErrOutputExists)
	assert.Contains(t, err.Error(), "--overwrite")
	assert.NoError(t, spreadsheet.EnsureWritable(path, true))

	err = spreadsheet.EnsureWritable(filepath.Dir(path), false)
	assert.ErrorIs(t, err, spreadsheet.ErrWriteFailed)
}
