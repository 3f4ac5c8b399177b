package format

import (
	"fmt"
	"io"

	"github.com/biql-lang/biql/query"
)

// PathsFormatter writes one file path per line: it looks for a "filepath"
// column in the row set, falling back to "relative_path", ignores every
// other column, and fails if neither column is present. This
// matches the common shell-pipeline use case of feeding BIQL's output
// straight into another tool as a file list.
type PathsFormatter struct {
	writer io.Writer
}

// NewPathsFormatter creates a paths formatter.
func NewPathsFormatter(w io.Writer) *PathsFormatter {
	return &PathsFormatter{writer: w}
}

func (p *PathsFormatter) SetOutput(w io.Writer) { p.writer = w }

func (p *PathsFormatter) Format(rs *query.RowSet) error {
	idx := columnIndex(rs.Columns, "filepath")
	if idx < 0 {
		idx = columnIndex(rs.Columns, "relative_path")
	}
	if idx < 0 {
		return fmt.Errorf("paths format requires a filepath or relative_path column in the projection")
	}
	for _, row := range rs.Rows {
		if _, err := fmt.Fprintln(p.writer, row[idx].String()); err != nil {
			return err
		}
	}
	return nil
}

func columnIndex(columns []string, name string) int {
	for i, c := range columns {
		if c == name {
			return i
		}
	}
	return -1
}
