package format

import (
	"io"

	"github.com/ohler55/ojg/oj"

	"github.com/biql-lang/biql/query"
)

// JSONFormatter outputs the full row set as a single JSON array of
// objects, one object per row, keyed by column name.
type JSONFormatter struct {
	writer io.Writer
}

// NewJSONFormatter creates a JSON array formatter.
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w}
}

func (j *JSONFormatter) SetOutput(w io.Writer) { j.writer = w }

func (j *JSONFormatter) Format(rs *query.RowSet) error {
	objs := make([]any, len(rs.Rows))
	for i, row := range rs.Rows {
		obj := make(map[string]any, len(rs.Columns))
		for c, col := range rs.Columns {
			obj[col] = row[c].ToAny()
		}
		objs[i] = obj
	}
	out, err := oj.Marshal(objs)
	if err != nil {
		return err
	}
	if _, err := j.writer.Write(out); err != nil {
		return err
	}
	_, err = j.writer.Write([]byte("\n"))
	return err
}
