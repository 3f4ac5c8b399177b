package query

import (
	"sort"

	"github.com/RoaringBitmap/roaring"

	"github.com/biql-lang/biql/catalog"
	"github.com/biql-lang/biql/value"
)

// Result is the outcome of executing a Query: the projected rows plus
// any non-fatal warnings raised while evaluating predicates or
// aggregates. Filtered holds the WHERE-matched records before
// projection or grouping, for consumers like the paths formatter that
// need one entry per matching record regardless of SELECT/GROUP BY.
type Result struct {
	Rows     *RowSet
	Warnings []EvalWarning
	Filtered []*catalog.FileRecord
}

var starFields = []string{"filepath", "relative_path", "filename", "extension", "suffix", "datatype"}

// Execute runs a parsed Query against a catalog: filter, group, filter
// groups (HAVING), project, dedupe (DISTINCT), and order, in that order,
// matching the grammar's clause semantics.
func Execute(q *Query, cat *catalog.Catalog) (*Result, error) {
	ev := NewEvaluator()

	matched := candidateRecords(q.Where, cat)
	if q.Where != nil {
		filtered := make([]*catalog.FileRecord, 0, len(matched))
		for _, rec := range matched {
			if ev.EvalBool(q.Where, rec) {
				filtered = append(filtered, rec)
			}
		}
		matched = filtered
	}

	partitions := GroupBy(matched, q.GroupBy)

	if q.Having != nil {
		filtered := make([]*Partition, 0, len(partitions))
		for _, p := range partitions {
			if EvalHaving(q.Having, p, ev) {
				filtered = append(filtered, p)
			}
		}
		partitions = filtered
	}

	rowSet, err := project(q, partitions, ev)
	if err != nil {
		return nil, err
	}

	if q.Distinct {
		rowSet = rowSet.Distinct()
	}

	if len(q.OrderBy) > 0 {
		colIndex := map[string]int{}
		for i, c := range rowSet.Columns {
			colIndex[c] = i
		}
		OrderRows(rowSet, q.OrderBy, colIndex)
	}

	return &Result{Rows: rowSet, Warnings: ev.Warnings, Filtered: matched}, nil
}

// candidateRecords narrows the scan to a bitmap-backed candidate set for a
// bare top-level equality predicate on sub or datatype, falling back to the
// full record set otherwise. This is purely an optimization: every
// candidate it returns is still run through the real predicate in Execute,
// so a bitmap miss (e.g. the query used leading-zero-insensitive numeric
// form like `sub=1` against a `sub-01` key) just means no narrowing, not an
// incorrect result. A numeric sub literal is never narrowed, because it
// also equals subject labels that differ only in leading zeros.
func candidateRecords(where Expr, cat *catalog.Catalog) []*catalog.FileRecord {
	cmp, ok := where.(CompareExpr)
	if !ok || cmp.Op != OpEqual || cmp.Left.Agg != nil || len(cmp.Left.Field) != 1 {
		return cat.Records
	}
	lit, ok := cmp.Right.(LiteralValue)
	if !ok || lit.V.Kind != value.KindStr {
		return cat.Records
	}

	var bm *roaring.Bitmap
	switch cmp.Left.Field[0] {
	case "sub":
		if _, numeric := lit.V.AsFloat64(); numeric {
			return cat.Records
		}
		bm, ok = cat.BitmapForSubject(lit.V.Str)
	case "datatype":
		bm, ok = cat.BitmapForDatatype(lit.V.Str)
	default:
		return cat.Records
	}
	if !ok {
		return cat.Records
	}

	candidates := make([]*catalog.FileRecord, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		candidates = append(candidates, cat.RecordAt(it.Next()))
	}
	return candidates
}

func project(q *Query, partitions []*Partition, ev *Evaluator) (*RowSet, error) {
	if len(q.Select) == 0 || hasStar(q.Select) {
		return projectStar(partitions), nil
	}

	columns := make([]string, len(q.Select))
	hasAggregate := false
	for i, item := range q.Select {
		columns[i] = item.Label()
		if item.Aggregate != nil {
			hasAggregate = true
		}
	}

	// With no GROUP BY and no aggregate function in the SELECT list, plain
	// fields project one row per matching record: there is nothing to
	// collapse. Auto-aggregation only kicks in for a real GROUP BY
	// partition, or for a plain field selected alongside an aggregate call
	// with no GROUP BY (an implicit whole-table partition).
	if len(q.GroupBy) == 0 && !hasAggregate {
		return projectRows(q.Select, partitions), nil
	}

	rs := NewRowSet(columns)
	for _, p := range partitions {
		if len(p.Records) == 0 && !hasCountStar(q.Select) {
			continue
		}
		row := make([]value.Value, len(q.Select))
		for i, item := range q.Select {
			row[i] = projectItem(item, p, ev)
		}
		rs.AddRow(row)
	}
	return rs, nil
}

// projectRows evaluates the select list once per record rather than once
// per partition, for queries with no GROUP BY and no aggregate calls.
func projectRows(items []SelectItem, partitions []*Partition) *RowSet {
	columns := make([]string, len(items))
	for i, item := range items {
		columns[i] = item.Label()
	}
	rs := NewRowSet(columns)
	for _, p := range partitions {
		for _, rec := range p.Records {
			row := make([]value.Value, len(items))
			for i, item := range items {
				row[i] = Resolve(rec, item.Field)
			}
			rs.AddRow(row)
		}
	}
	return rs
}

func hasStar(items []SelectItem) bool {
	for _, item := range items {
		if item.Star {
			return true
		}
	}
	return false
}

func hasCountStar(items []SelectItem) bool {
	for _, item := range items {
		if item.Aggregate != nil && item.Aggregate.Func == AggCount && item.Aggregate.ArgStar {
			return true // COUNT(*) over an empty partition is a valid 0 row
		}
	}
	return false
}

func projectItem(item SelectItem, p *Partition, ev *Evaluator) value.Value {
	switch {
	case item.Star:
		return value.Null // not reached: any '*' item sends project to projectStar
	case item.Aggregate != nil:
		return ComputeAggregate(item.Aggregate, p, ev)
	default:
		return AutoAggregate(item.Field, p)
	}
}

// projectStar handles bare "SELECT *" (and bare-predicate mode): since
// records in a catalog carry heterogeneous entity sets, the column list
// is the union of core fields and every entity key observed across the
// matched records, sorted for determinism.
func projectStar(partitions []*Partition) *RowSet {
	var all []*catalog.FileRecord
	for _, p := range partitions {
		all = append(all, p.Records...)
	}

	entitySet := map[string]bool{}
	for _, rec := range all {
		for k := range rec.Entities {
			entitySet[k] = true
		}
	}
	entityCols := make([]string, 0, len(entitySet))
	for k := range entitySet {
		entityCols = append(entityCols, k)
	}
	sort.Strings(entityCols)

	columns := append(append([]string{}, starFields...), entityCols...)

	rs := NewRowSet(columns)
	for _, rec := range all {
		row := make([]value.Value, len(columns))
		for i, col := range columns {
			row[i] = rec.Resolve(col)
		}
		rs.AddRow(row)
	}
	return rs
}
