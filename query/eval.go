package query

import (
	"regexp"
	"strings"

	"github.com/biql-lang/biql/catalog"
	"github.com/biql-lang/biql/value"
)

// EvalWarning records a non-fatal problem encountered while evaluating a
// predicate against one record, e.g. a malformed regex or an
// out-of-range comparison. Per the error-handling design, a single bad
// comparison evaluates to false rather than aborting the whole query.
type EvalWarning struct {
	Field   string
	Message string
}

// Evaluator evaluates parsed expressions against catalog records,
// accumulating any warnings raised along the way.
type Evaluator struct {
	Warnings []EvalWarning
	regexes  map[string]*regexp.Regexp
}

// NewEvaluator creates an Evaluator with an empty warning sink.
func NewEvaluator() *Evaluator {
	return &Evaluator{regexes: map[string]*regexp.Regexp{}}
}

func (e *Evaluator) warn(field, msg string) {
	e.Warnings = append(e.Warnings, EvalWarning{Field: field, Message: msg})
}

// Resolve resolves a qualified identifier against a record, dispatching
// on the three namespaces: bare fields/entities, metadata.*, and
// participants.*.
func Resolve(rec *catalog.FileRecord, ident QualifiedIdent) value.Value {
	if len(ident) == 0 {
		return value.Null
	}
	switch strings.ToLower(ident[0]) {
	case "metadata":
		return rec.ResolveMetadata(ident[1:])
	case "participants":
		return rec.ResolveParticipants(ident[1:])
	default:
		return rec.Resolve(ident.String())
	}
}

// EvalBool evaluates an expression tree against a record. Null values
// collapse to false in boolean position (three-valued logic collapsed to
// two-valued at the top of any boolean context), per the query language's
// truth-table rules.
func (e *Evaluator) EvalBool(expr Expr, rec *catalog.FileRecord) bool {
	switch n := expr.(type) {
	case OrExpr:
		for _, op := range n.Operands {
			if e.EvalBool(op, rec) {
				return true
			}
		}
		return false
	case AndExpr:
		for _, op := range n.Operands {
			if !e.EvalBool(op, rec) {
				return false
			}
		}
		return true
	case NotExpr:
		return !e.EvalBool(n.Operand, rec)
	case CompareExpr:
		return e.evalCompare(n, rec)
	case InExpr:
		return e.evalIn(n, rec)
	case LikeExpr:
		return e.evalLike(n, rec)
	case ExistenceExpr:
		if n.Field.Agg != nil {
			e.warn(n.Field.String(), "aggregate expressions are only valid in HAVING")
			return false
		}
		v := Resolve(rec, n.Field.Field)
		return isTruthyPresent(v)
	default:
		return false
	}
}

// isTruthyPresent implements bare-identifier existence semantics: true
// iff the value is non-null and (for strings) non-empty.
func isTruthyPresent(v value.Value) bool {
	if v.IsNull() {
		return false
	}
	if v.Kind == value.KindStr && v.Str == "" {
		return false
	}
	return true
}

func (e *Evaluator) evalCompare(n CompareExpr, rec *catalog.FileRecord) bool {
	if n.Left.Agg != nil {
		e.warn(n.Left.String(), "aggregate expressions are only valid in HAVING")
		return false
	}
	left := Resolve(rec, n.Left.Field)

	switch right := n.Right.(type) {
	case NullValue:
		isNull := left.IsNull()
		if n.Op == OpEqual {
			return isNull
		}
		if n.Op == OpNotEqual {
			return !isNull
		}
		e.warn(n.Left.String(), "NULL only supports = and !=")
		return false
	case PatternValue:
		if n.Op != OpEqual && n.Op != OpNotEqual {
			e.warn(n.Left.String(), "pattern values only support = and !=")
			return false
		}
		matched := !left.IsNull() && MatchGlob(left.String(), right.Pattern)
		if n.Op == OpNotEqual {
			return !matched
		}
		return matched
	case RegexValue:
		if n.Op != OpRegex {
			e.warn(n.Left.String(), "regex literals only support ~=")
			return false
		}
		return e.evalRegex(left, right.Pattern, n.Left.String())
	case RangeValue:
		if n.Op != OpEqual {
			e.warn(n.Left.String(), "range values only support =")
			return false
		}
		f, ok := left.AsFloat64()
		if !ok {
			return false
		}
		return f >= right.Lo && f <= right.Hi
	case LiteralValue:
		return e.evalLiteralCompare(left, right.V, n.Op, n.Left.String())
	default:
		return false
	}
}

func (e *Evaluator) evalRegex(left value.Value, pattern, field string) bool {
	if left.IsNull() {
		return false
	}
	re, ok := e.regexes[pattern]
	if !ok {
		// ~= is a full match: anchor the whole pattern.
		compiled, err := regexp.Compile("^(?:" + pattern + ")$")
		if err != nil {
			e.warn(field, "invalid regex: "+err.Error())
			e.regexes[pattern] = nil
			return false
		}
		re = compiled
		e.regexes[pattern] = re
	}
	if re == nil {
		return false
	}
	return re.MatchString(left.String())
}

// evalLiteralCompare implements the coercion ladder: numeric comparison
// (leading-zero insensitive for entity-style values) is attempted first,
// falling back to exact string comparison.
func (e *Evaluator) evalLiteralCompare(left, right value.Value, op CompareOp, field string) bool {
	if op == OpEqual || op == OpNotEqual {
		eq := value.Equal(left, right)
		if op == OpEqual {
			return eq
		}
		return !eq
	}

	lf, lok := left.AsFloat64()
	rf, rok := right.AsFloat64()
	if lok && rok {
		switch op {
		case OpLess:
			return lf < rf
		case OpGreater:
			return lf > rf
		case OpLessEqual:
			return lf <= rf
		case OpGreaterEqual:
			return lf >= rf
		}
	}

	cmp := strings.Compare(left.String(), right.String())
	switch op {
	case OpLess:
		return cmp < 0
	case OpGreater:
		return cmp > 0
	case OpLessEqual:
		return cmp <= 0
	case OpGreaterEqual:
		return cmp >= 0
	default:
		e.warn(field, "unsupported comparison operator")
		return false
	}
}

func (e *Evaluator) evalIn(n InExpr, rec *catalog.FileRecord) bool {
	if n.Left.Agg != nil {
		e.warn(n.Left.String(), "aggregate expressions are only valid in HAVING")
		return false
	}
	left := Resolve(rec, n.Left.Field)
	for _, item := range n.List {
		switch v := item.(type) {
		case NullValue:
			if left.IsNull() {
				return true
			}
		case LiteralValue:
			if value.Equal(left, v.V) {
				return true
			}
		case PatternValue:
			if !left.IsNull() && MatchGlob(left.String(), v.Pattern) {
				return true
			}
		}
	}
	return false
}

func (e *Evaluator) evalLike(n LikeExpr, rec *catalog.FileRecord) bool {
	if n.Left.Agg != nil {
		e.warn(n.Left.String(), "aggregate expressions are only valid in HAVING")
		return false
	}
	left := Resolve(rec, n.Left.Field)
	if left.IsNull() {
		return false
	}
	return MatchLike(left.String(), n.Pattern)
}
