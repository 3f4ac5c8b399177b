// Package query implements the BIQL lexer, recursive-descent parser,
// abstract syntax tree, and evaluator: the compiler and runtime that turn
// query text into filtered, grouped, ordered result rows over a catalog
// of file records.
package query

import "github.com/biql-lang/biql/value"

// QualifiedIdent is a dotted identifier path, e.g. ["metadata", "Repetition", "Time"]
// or a single-element bare name like ["sub"].
type QualifiedIdent []string

func (q QualifiedIdent) String() string {
	s := q[0]
	for _, seg := range q[1:] {
		s += "." + seg
	}
	return s
}

// Query is the parsed form of a BIQL query.
type Query struct {
	Distinct bool
	Select   []SelectItem // nil/empty means "*" (bare predicate or explicit SELECT *)
	Where    Expr
	GroupBy  []QualifiedIdent
	Having   Expr
	OrderBy  []OrderItem
	Format   string // optional FORMAT clause override; "" means unset
}

// SelectItem is one projection entry: a bare qualified identifier, a
// wildcard, or an aggregate call, with an optional alias.
type SelectItem struct {
	Star      bool
	Field     QualifiedIdent
	Aggregate *Aggregate
	Alias     string
}

// Label returns the column name this item projects under, applying the
// alias if present.
func (s SelectItem) Label() string {
	if s.Alias != "" {
		return s.Alias
	}
	if s.Star {
		return "*"
	}
	if s.Aggregate != nil {
		return s.Aggregate.Label()
	}
	return s.Field.String()
}

// AggregateFunc names the explicit aggregate functions.
type AggregateFunc string

const (
	AggCount     AggregateFunc = "COUNT"
	AggAvg       AggregateFunc = "AVG"
	AggMax       AggregateFunc = "MAX"
	AggMin       AggregateFunc = "MIN"
	AggSum       AggregateFunc = "SUM"
	AggArrayAgg  AggregateFunc = "ARRAY_AGG"
)

// Aggregate is an explicit aggregate-function call in a SELECT item.
type Aggregate struct {
	Func     AggregateFunc
	Distinct bool
	ArgStar  bool // COUNT(*)
	Arg      QualifiedIdent
	Where    Expr // optional per-element filter, e.g. ARRAY_AGG(x WHERE cond)
}

func (a *Aggregate) Label() string {
	if a.ArgStar {
		return string(a.Func) + "(*)"
	}
	return string(a.Func) + "(" + a.Arg.String() + ")"
}

// OrderItem is one key of an ORDER BY clause.
type OrderItem struct {
	Key  QualifiedIdent
	Desc bool
}

// Expr is a boolean expression node (the WHERE/HAVING grammar). Every
// node folds to a single bool against a row context; null collapses to
// false in boolean position per the evaluator's three-valued-logic rule.
type Expr interface {
	isExpr()
}

// OrExpr is a disjunction of its operands.
type OrExpr struct{ Operands []Expr }

// AndExpr is a conjunction of its operands (explicit AND or adjacency).
type AndExpr struct{ Operands []Expr }

// NotExpr negates its operand.
type NotExpr struct{ Operand Expr }

// CompareOp enumerates the comparison operators of the cmp grammar rule.
type CompareOp int

const (
	OpEqual CompareOp = iota
	OpNotEqual
	OpLess
	OpGreater
	OpLessEqual
	OpGreaterEqual
	OpRegex
)

// Operand is the left-hand side of a comparison: either a plain
// qualified identifier (the common case, used in WHERE) or an aggregate
// call (used in HAVING, e.g. `HAVING COUNT(*) > 5`).
type Operand struct {
	Field QualifiedIdent
	Agg   *Aggregate
}

// String renders the operand for diagnostics and column labeling.
func (o Operand) String() string {
	if o.Agg != nil {
		return o.Agg.Label()
	}
	return o.Field.String()
}

// CompareExpr is `value_expr op value`.
type CompareExpr struct {
	Left  Operand
	Op    CompareOp
	Right ValueNode
}

// InExpr is `value_expr IN list`.
type InExpr struct {
	Left Operand
	List []ValueNode
}

// LikeExpr is `value_expr LIKE pattern`.
type LikeExpr struct {
	Left    Operand
	Pattern string
}

// ExistenceExpr is a bare qualified_ident used as a predicate: true iff
// the resolved value is non-null and non-empty.
type ExistenceExpr struct{ Field Operand }

func (OrExpr) isExpr()        {}
func (AndExpr) isExpr()       {}
func (NotExpr) isExpr()       {}
func (CompareExpr) isExpr()   {}
func (InExpr) isExpr()        {}
func (LikeExpr) isExpr()      {}
func (ExistenceExpr) isExpr() {}

// ValueNode is a right-hand value form from the grammar's `value` rule.
type ValueNode interface {
	isValueNode()
}

// LiteralValue is a bare number or string literal.
type LiteralValue struct{ V value.Value }

// PatternValue is a glob-style value (wildcards * and ?).
type PatternValue struct{ Pattern string }

// RangeValue is `[a:b]`, numeric inclusive bounds.
type RangeValue struct{ Lo, Hi float64 }

// ListValue is `[a, b, ...]`, used by IN.
type ListValue struct{ Items []ValueNode }

// RegexValue is a /regex/ literal, used with the ~= operator.
type RegexValue struct{ Pattern string }

// NullValue is the literal NULL.
type NullValue struct{}

func (LiteralValue) isValueNode() {}
func (PatternValue) isValueNode() {}
func (RangeValue) isValueNode()   {}
func (ListValue) isValueNode()    {}
func (RegexValue) isValueNode()   {}
func (NullValue) isValueNode()    {}
