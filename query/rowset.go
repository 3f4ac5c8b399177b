package query

import "github.com/biql-lang/biql/value"

// RowSet is an ordered result table: named columns and rows of values in
// that column order, the shape that projection, grouping, and ordering
// all produce and that the format package consumes directly.
type RowSet struct {
	Columns []string
	Rows    [][]value.Value
}

// NewRowSet creates an empty RowSet with the given column labels.
func NewRowSet(columns []string) *RowSet {
	return &RowSet{Columns: columns}
}

// AddRow appends a row. Its length must match len(Columns).
func (r *RowSet) AddRow(row []value.Value) {
	r.Rows = append(r.Rows, row)
}

// Distinct removes duplicate rows, preserving the first occurrence of
// each distinct row per the projection-level DISTINCT semantics.
func (r *RowSet) Distinct() *RowSet {
	seen := map[string]bool{}
	out := NewRowSet(r.Columns)
	for _, row := range r.Rows {
		key := rowKey(row)
		if seen[key] {
			continue
		}
		seen[key] = true
		out.AddRow(row)
	}
	return out
}

func rowKey(row []value.Value) string {
	key := ""
	for _, v := range row {
		key += v.String() + "\x00"
	}
	return key
}
