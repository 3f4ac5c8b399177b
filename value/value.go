// Package value implements the polymorphic attribute value used throughout
// the catalog and query packages: a tagged variant over null, bool, int,
// float, string, list and map, with the comparison and stringification
// rules BIQL's evaluator and formatters depend on.
package value

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies which case of Value is populated.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindStr
	KindList
	KindMap
)

// Value is a sum type: exactly the fields matching Kind are meaningful.
// The zero Value is Null.
type Value struct {
	Kind Kind
	Bool bool
	Int  int64
	Flt  float64
	Str  string
	List []Value
	Map  map[string]Value
}

var Null = Value{Kind: KindNull}

func Bool(b bool) Value           { return Value{Kind: KindBool, Bool: b} }
func Int(i int64) Value           { return Value{Kind: KindInt, Int: i} }
func Float(f float64) Value       { return Value{Kind: KindFloat, Flt: f} }
func Str(s string) Value          { return Value{Kind: KindStr, Str: s} }
func List(vs []Value) Value       { return Value{Kind: KindList, List: vs} }
func Map(m map[string]Value) Value { return Value{Kind: KindMap, Map: m} }

func (v Value) IsNull() bool { return v.Kind == KindNull }

// FromAny lifts a Go value produced by a JSON/TSV decoder (nil, bool,
// float64, string, []interface{}, map[string]interface{}, or an already
// converted int64/float64) into a Value.
func FromAny(a any) Value {
	switch t := a.(type) {
	case nil:
		return Null
	case Value:
		return t
	case bool:
		return Bool(t)
	case string:
		return Str(t)
	case int:
		return Int(int64(t))
	case int64:
		return Int(t)
	case float64:
		if t == float64(int64(t)) {
			return Float(t)
		}
		return Float(t)
	case float32:
		return Float(float64(t))
	case []any:
		out := make([]Value, len(t))
		for i, e := range t {
			out[i] = FromAny(e)
		}
		return List(out)
	case map[string]any:
		out := make(map[string]Value, len(t))
		for k, e := range t {
			out[k] = FromAny(e)
		}
		return Map(out)
	default:
		return Str(fmt.Sprintf("%v", t))
	}
}

// String renders the value in its canonical human-readable string form,
// used for string-mode comparisons, globbing and default formatting.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Flt, 'g', -1, 64)
	case KindStr:
		return v.Str
	case KindList:
		parts := make([]string, len(v.List))
		for i, e := range v.List {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + v.Map[k].String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return ""
	}
}

// ToAny converts v into a plain Go value (nil, bool, int64, float64,
// string, []any, or map[string]any) suitable for JSON marshaling.
func (v Value) ToAny() any {
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Flt
	case KindStr:
		return v.Str
	case KindList:
		out := make([]any, len(v.List))
		for i, e := range v.List {
			out[i] = e.ToAny()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.Map))
		for k, e := range v.Map {
			out[k] = e.ToAny()
		}
		return out
	default:
		return nil
	}
}

// AsFloat64 reports whether v is numerically convertible and its value.
// Strings that parse cleanly as numbers are accepted too, since entity
// values and literal query tokens both arrive as strings.
func (v Value) AsFloat64() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat:
		return v.Flt, true
	case KindBool:
		if v.Bool {
			return 1, true
		}
		return 0, true
	case KindStr:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// AsNonNegativeInt reports whether v represents a non-negative integer,
// tolerating leading zeros (e.g. "01"), which is the form BIDS entity
// values take.
func (v Value) AsNonNegativeInt() (int64, bool) {
	s := v.String()
	if v.Kind != KindStr && v.Kind != KindInt {
		return 0, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Equal implements the comparison-time equality rule from the evaluator:
// leading-zero-insensitive numeric comparison when both sides look like
// non-negative integers, numeric comparison when both sides are otherwise
// numeric, and exact string comparison as the fallback.
func Equal(l, r Value) bool {
	if l.IsNull() || r.IsNull() {
		return l.IsNull() && r.IsNull()
	}
	if ln, lok := l.AsNonNegativeInt(); lok {
		if rn, rok := r.AsNonNegativeInt(); rok {
			return ln == rn
		}
	}
	if lf, lok := l.AsFloat64(); lok {
		if rf, rok := r.AsFloat64(); rok {
			return lf == rf
		}
	}
	return l.String() == r.String()
}

// Compare returns -1, 0, 1 for l<r, l==r, l>r under the same coercion
// ladder as Equal, falling back to lexicographic string order.
func Compare(l, r Value) int {
	if lf, lok := l.AsFloat64(); lok {
		if rf, rok := r.AsFloat64(); rok {
			switch {
			case lf < rf:
				return -1
			case lf > rf:
				return 1
			default:
				return 0
			}
		}
	}
	ls, rs := l.String(), r.String()
	switch {
	case ls < rs:
		return -1
	case ls > rs:
		return 1
	default:
		return 0
	}
}
