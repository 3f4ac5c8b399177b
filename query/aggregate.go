package query

import (
	"sort"

	"github.com/biql-lang/biql/catalog"
	"github.com/biql-lang/biql/value"
)

// Partition is one GROUP BY bucket: the group-by key values (in clause
// order) and the member records.
type Partition struct {
	Key     []value.Value
	Records []*catalog.FileRecord
}

// GroupBy partitions records by the given keys. With no keys, all
// records fall into a single partition, matching "no GROUP BY" query
// semantics (the whole result set is one implicit group for aggregation
// purposes).
func GroupBy(records []*catalog.FileRecord, keys []QualifiedIdent) []*Partition {
	if len(keys) == 0 {
		return []*Partition{{Records: records}}
	}

	order := []string{}
	byKey := map[string]*Partition{}

	for _, rec := range records {
		keyVals := make([]value.Value, len(keys))
		for i, k := range keys {
			keyVals[i] = Resolve(rec, k)
		}
		hash := hashKey(keyVals)
		p, ok := byKey[hash]
		if !ok {
			p = &Partition{Key: keyVals}
			byKey[hash] = p
			order = append(order, hash)
		}
		p.Records = append(p.Records, rec)
	}

	out := make([]*Partition, len(order))
	for i, h := range order {
		out[i] = byKey[h]
	}
	return out
}

func hashKey(vals []value.Value) string {
	s := ""
	for _, v := range vals {
		if v.IsNull() {
			s += "\x00N\x00"
		} else {
			s += v.String() + "\x00V\x00"
		}
	}
	return s
}

// AutoAggregate implements the projection rule applied to a plain field
// reference on a grouped query: a single distinct non-null value across
// the partition collapses to a scalar, multiple distinct values become
// an ordered first-seen list, and an all-null partition yields null.
func AutoAggregate(field QualifiedIdent, p *Partition) value.Value {
	seen := map[string]bool{}
	var ordered []value.Value

	for _, rec := range p.Records {
		v := Resolve(rec, field)
		if v.IsNull() {
			continue
		}
		key := v.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		ordered = append(ordered, v)
	}

	switch len(ordered) {
	case 0:
		return value.Null
	case 1:
		return ordered[0]
	default:
		return value.List(ordered)
	}
}

// ComputeAggregate evaluates one explicit aggregate call over a
// partition, applying its optional per-element WHERE filter first and
// its DISTINCT modifier (which drops nulls, per aggregate convention)
// before reducing.
func ComputeAggregate(agg *Aggregate, p *Partition, ev *Evaluator) value.Value {
	records := p.Records
	if agg.Where != nil {
		filtered := make([]*catalog.FileRecord, 0, len(records))
		for _, rec := range records {
			if ev.EvalBool(agg.Where, rec) {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	if agg.Func == AggCount && agg.ArgStar {
		return value.Int(int64(len(records)))
	}

	vals := make([]value.Value, 0, len(records))
	for _, rec := range records {
		v := Resolve(rec, agg.Arg)
		vals = append(vals, v)
	}

	if agg.Distinct {
		vals = distinctNonNull(vals)
	}

	switch agg.Func {
	case AggCount:
		n := 0
		for _, v := range vals {
			if !v.IsNull() {
				n++
			}
		}
		return value.Int(int64(n))
	case AggSum:
		sum, n := 0.0, 0
		for _, v := range vals {
			f, ok := v.AsFloat64()
			if !ok {
				continue
			}
			sum += f
			n++
		}
		if n == 0 {
			return value.Null
		}
		return value.Float(sum)
	case AggAvg:
		sum, n := 0.0, 0
		for _, v := range vals {
			f, ok := v.AsFloat64()
			if !ok {
				continue
			}
			sum += f
			n++
		}
		if n == 0 {
			return value.Null
		}
		return value.Float(sum / float64(n))
	case AggMax:
		return extreme(vals, 1)
	case AggMin:
		return extreme(vals, -1)
	case AggArrayAgg:
		// Nulls are preserved unless DISTINCT was specified, in which case
		// they were already dropped by distinctNonNull above.
		return value.List(vals)
	default:
		return value.Null
	}
}

func distinctNonNull(vals []value.Value) []value.Value {
	seen := map[string]bool{}
	out := make([]value.Value, 0, len(vals))
	for _, v := range vals {
		if v.IsNull() {
			continue
		}
		key := v.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

// extreme returns the max (dir=1) or min (dir=-1) non-null value, or
// null if none exist.
func extreme(vals []value.Value, dir int) value.Value {
	var best value.Value
	found := false
	for _, v := range vals {
		if v.IsNull() {
			continue
		}
		if !found {
			best = v
			found = true
			continue
		}
		if value.Compare(v, best)*dir > 0 {
			best = v
		}
	}
	if !found {
		return value.Null
	}
	return best
}

// EvalHaving evaluates a HAVING expression against a partition, where
// Operand.Agg operands are computed over the partition and plain field
// operands fall back to auto-aggregation (matching the GROUP BY key or
// collapsing per AutoAggregate rules).
func EvalHaving(expr Expr, p *Partition, ev *Evaluator) bool {
	switch n := expr.(type) {
	case OrExpr:
		for _, op := range n.Operands {
			if EvalHaving(op, p, ev) {
				return true
			}
		}
		return false
	case AndExpr:
		for _, op := range n.Operands {
			if !EvalHaving(op, p, ev) {
				return false
			}
		}
		return true
	case NotExpr:
		return !EvalHaving(n.Operand, p, ev)
	case CompareExpr:
		left := havingOperandValue(n.Left, p, ev)
		return ev.evalLiteralOrSpecial(left, n.Right, n.Op, n.Left.String())
	case ExistenceExpr:
		return isTruthyPresent(havingOperandValue(n.Field, p, ev))
	case InExpr:
		left := havingOperandValue(n.Left, p, ev)
		for _, item := range n.List {
			if lit, ok := item.(LiteralValue); ok && value.Equal(left, lit.V) {
				return true
			}
			if _, ok := item.(NullValue); ok && left.IsNull() {
				return true
			}
		}
		return false
	case LikeExpr:
		left := havingOperandValue(n.Left, p, ev)
		if left.IsNull() {
			return false
		}
		return MatchLike(left.String(), n.Pattern)
	default:
		return false
	}
}

func havingOperandValue(op Operand, p *Partition, ev *Evaluator) value.Value {
	if op.Agg != nil {
		return ComputeAggregate(op.Agg, p, ev)
	}
	return AutoAggregate(op.Field, p)
}

// evalLiteralOrSpecial reuses the comparison coercion ladder for a
// resolved left-hand value against any right-hand value form.
func (e *Evaluator) evalLiteralOrSpecial(left value.Value, right ValueNode, op CompareOp, field string) bool {
	switch r := right.(type) {
	case NullValue:
		isNull := left.IsNull()
		if op == OpEqual {
			return isNull
		}
		if op == OpNotEqual {
			return !isNull
		}
		return false
	case PatternValue:
		matched := !left.IsNull() && MatchGlob(left.String(), r.Pattern)
		if op == OpNotEqual {
			return !matched
		}
		return matched
	case RegexValue:
		return e.evalRegex(left, r.Pattern, field)
	case RangeValue:
		f, ok := left.AsFloat64()
		if !ok {
			return false
		}
		return f >= r.Lo && f <= r.Hi
	case LiteralValue:
		return e.evalLiteralCompare(left, r.V, op, field)
	default:
		return false
	}
}

// Partitions are not sorted; ordering of final projected rows happens in
// OrderRows over RowSet.

// OrderRows sorts rowset rows by the given order keys, resolved by
// column index, applying the documented null-ordering rule: nulls sort
// last in ascending order and first in descending order. A key that names
// no column is skipped.
func OrderRows(rs *RowSet, keys []OrderItem, colIndex map[string]int) {
	idxs := make([]int, len(keys))
	for i, k := range keys {
		ci, ok := colIndex[k.Key.String()]
		if !ok {
			ci = -1
		}
		idxs[i] = ci
	}
	sort.SliceStable(rs.Rows, func(a, b int) bool {
		for i, ci := range idxs {
			if ci < 0 {
				continue
			}
			av, bv := rs.Rows[a][ci], rs.Rows[b][ci]
			if av.IsNull() && bv.IsNull() {
				continue
			}
			if av.IsNull() {
				return keys[i].Desc
			}
			if bv.IsNull() {
				return !keys[i].Desc
			}
			c := value.Compare(av, bv)
			if c == 0 {
				continue
			}
			if keys[i].Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}
