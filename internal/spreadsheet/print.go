package spreadsheet

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/2beens/withings2weeks/internal/weekly"

	"github.com/fatih/color"
)

const absentCell = "-"

var headerColor = color.New(color.Bold)

// Print writes the table aligned in columns, with a bold header line when
// the output supports colors.
func Print(w io.Writer, table weekly.Table) error {
	buf := &bytes.Buffer{}
	tw := tabwriter.NewWriter(buf, 0, 0, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintln(tw, strings.Join(table.Headers, "\t")+"\t")
	for _, row := range table.Rows {
		cells := make([]string, 0, len(row.Cells)+1)
		cells = append(cells, row.Week)
		for _, c := range row.Cells {
			cells = append(cells, formatCell(c))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	header, rest, _ := strings.Cut(buf.String(), "\n")
	if _, err := fmt.Fprintln(w, headerColor.Sprint(strings.TrimRight(header, " "))); err != nil {
		return err
	}
	for _, line := range strings.Split(strings.TrimSuffix(rest, "\n"), "\n") {
		if line == "" {
			continue
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	return nil
}

func formatCell(v *float64) string {
	if v == nil {
		return absentCell
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
