// Package format renders a query.RowSet into the output formats BIQL
// supports on the command line: a JSON array of objects, CSV, TSV, an
// aligned table, and a bare newline-separated path list.
package format

import (
	"fmt"
	"io"

	"github.com/biql-lang/biql/query"
)

// Formatter converts a RowSet into bytes on an output writer.
type Formatter interface {
	// Format writes rs in the formatter's specific format.
	Format(rs *query.RowSet) error

	// SetOutput changes the output writer.
	SetOutput(w io.Writer)
}

// New resolves a format name to a Formatter writing to w. Recognized
// names, matched exactly (lowercase only): json, csv, tsv, table, paths.
func New(name string, w io.Writer) (Formatter, error) {
	switch name {
	case "json":
		return NewJSONFormatter(w), nil
	case "csv":
		return NewCSVFormatter(w, ','), nil
	case "tsv":
		return NewCSVFormatter(w, '\t'), nil
	case "table":
		return NewTableFormatter(w), nil
	case "paths":
		return NewPathsFormatter(w), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", name)
	}
}
