package format

import (
	"fmt"
	"io"

	"github.com/ohler55/ojg/oj"
	"github.com/olekukonko/tablewriter"

	"github.com/biql-lang/biql/query"
	"github.com/biql-lang/biql/value"
)

// arrayCellPreviewLimit bounds how many list elements are rendered
// inline before a table cell is truncated with a "[...N items...]"
// marker, keeping wide aggregate results readable in a terminal.
const arrayCellPreviewLimit = 3

// TableFormatter renders rows as an aligned ASCII table for interactive
// terminal use.
type TableFormatter struct {
	writer io.Writer
}

// NewTableFormatter creates a table formatter.
func NewTableFormatter(w io.Writer) *TableFormatter {
	return &TableFormatter{writer: w}
}

func (t *TableFormatter) SetOutput(w io.Writer) { t.writer = w }

func (t *TableFormatter) Format(rs *query.RowSet) error {
	table := tablewriter.NewWriter(t.writer)
	table.SetHeader(rs.Columns)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)

	for _, row := range rs.Rows {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = formatTableCell(v)
		}
		table.Append(record)
	}

	table.Render()
	return nil
}

func formatTableCell(v value.Value) string {
	switch v.Kind {
	case value.KindNull:
		return ""
	case value.KindList:
		if len(v.List) > arrayCellPreviewLimit {
			return fmt.Sprintf("[...%d items...]", len(v.List))
		}
		return v.String()
	case value.KindMap:
		b, err := oj.Marshal(v.ToAny())
		if err != nil {
			return v.String()
		}
		return string(b)
	default:
		return v.String()
	}
}
