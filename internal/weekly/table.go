package weekly

import (
	"github.com/2beens/withings2weeks/internal/measure"
)

const WeekColumnHeader = "Week number"

// Column is one metric column of the output table.
type Column struct {
	Header string
	Metric measure.Metric
}

// Columns is the output column order after the week column.
var Columns = []Column{
	{Header: "Weight (kg)", Metric: measure.Weight},
	{Header: "Muscle mass (kg)", Metric: measure.MuscleMass},
	{Header: "Hydration (kg)", Metric: measure.Hydration},
	{Header: "Fat mass (kg)", Metric: measure.FatMass},
	{Header: "Bone mass (kg)", Metric: measure.BoneMass},
}

// Row is one week of the output table. A nil cell means no data for that metric.
type Row struct {
	Week  string
	Cells []*float64
}

// Table is the weekly averages output. An empty table still carries its headers.
type Table struct {
	Headers []string
	Rows    []Row
}

func Headers() []string {
	headers := make([]string, 0, len(Columns)+1)
	headers = append(headers, WeekColumnHeader)
	for _, c := range Columns {
		headers = append(headers, c.Header)
	}
	return headers
}

func NewTable(weekly []WeeklyAverage) Table {
	table := Table{
		Headers: Headers(),
		Rows:    make([]Row, 0, len(weekly)),
	}
	for _, w := range weekly {
		row := Row{
			Week:  w.Week.Code(),
			Cells: make([]*float64, len(Columns)),
		}
		for i, c := range Columns {
			if v, ok := w.Values[c.Metric]; ok {
				v := v
				row.Cells[i] = &v
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

func (t Table) Empty() bool {
	return len(t.Rows) == 0
}
