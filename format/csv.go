package format

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/ohler55/ojg/oj"

	"github.com/biql-lang/biql/query"
	"github.com/biql-lang/biql/value"
)

// CSVFormatter outputs rows as delimiter-separated values with a header
// row. The same implementation serves both CSV (comma) and TSV (tab).
type CSVFormatter struct {
	writer io.Writer
	comma  rune
}

// NewCSVFormatter creates a formatter using comma as the field
// separator.
func NewCSVFormatter(w io.Writer, comma rune) *CSVFormatter {
	return &CSVFormatter{writer: w, comma: comma}
}

func (c *CSVFormatter) SetOutput(w io.Writer) { c.writer = w }

func (c *CSVFormatter) Format(rs *query.RowSet) error {
	w := csv.NewWriter(c.writer)
	w.Comma = c.comma

	if err := w.Write(rs.Columns); err != nil {
		return err
	}

	for _, row := range rs.Rows {
		record := make([]string, len(rs.Columns))
		for i, v := range row {
			record[i] = formatCell(v)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// formatCell renders one value as a CSV/TSV field, JSON-encoding list
// and map values (per BIQL's array-cell convention) and sanitizing
// leading characters that spreadsheet applications treat as formula
// triggers.
func formatCell(v value.Value) string {
	switch v.Kind {
	case value.KindNull:
		return ""
	case value.KindList, value.KindMap:
		b, err := oj.Marshal(v.ToAny())
		if err != nil {
			return v.String()
		}
		return string(b)
	case value.KindStr:
		return sanitizeCSVString(v.Str)
	default:
		return v.String()
	}
}

func sanitizeCSVString(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r', '\n', '|':
		return "'" + strings.ReplaceAll(s, "'", "''")
	default:
		return s
	}
}
