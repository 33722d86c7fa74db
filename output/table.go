package output

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
)

// TableFormatter renders rows as an ASCII table. The whole result is
// buffered because column widths depend on every row.
type TableFormatter struct {
	writer io.Writer
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(w io.Writer) *TableFormatter {
	return &TableFormatter{writer: w}
}

// SetOutput sets the output writer
func (t *TableFormatter) SetOutput(w io.Writer) {
	t.writer = w
}

// Format renders the header, every row and a row count caption
func (t *TableFormatter) Format(r Result) error {
	table := tablewriter.NewWriter(t.writer)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)

	cols := r.Columns()
	header := make([]string, len(cols))
	for i, col := range cols {
		header[i] = col.Name
	}
	table.SetHeader(header)

	count := 0
	for {
		vals, ok, err := next(r)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		cells := make([]string, len(vals))
		for i, v := range vals {
			cells[i] = v.String()
		}
		table.Append(cells)
		count++
	}

	if count == 1 {
		table.SetCaption(true, "1 row")
	} else {
		table.SetCaption(true, fmt.Sprintf("%d rows", count))
	}
	table.Render()
	return nil
}
