package query

import (
	"testing"

	"github.com/biql-lang/biql/catalog"
	"github.com/biql-lang/biql/value"
)

func rec(entities map[string]string) *catalog.FileRecord {
	return &catalog.FileRecord{
		Filepath:     "/ds/" + entities["sub"] + ".nii.gz",
		RelativePath: entities["sub"] + ".nii.gz",
		Filename:     entities["sub"] + ".nii.gz",
		Extension:    ".nii.gz",
		Entities:     entities,
		Metadata:     map[string]value.Value{},
		Participants: map[string]value.Value{},
	}
}

func mustParseWhere(t *testing.T, text string) Expr {
	t.Helper()
	q, err := Parse(text)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return q.Where
}

func TestEvalNumericLeadingZero(t *testing.T) {
	e := NewEvaluator()
	r := rec(map[string]string{"sub": "01"})
	expr := mustParseWhere(t, "sub=1")
	if !e.EvalBool(expr, r) {
		t.Fatalf("expected sub=1 to match sub-01")
	}
}

func TestEvalPatternMatch(t *testing.T) {
	e := NewEvaluator()
	r := rec(map[string]string{"task": "nback"})
	expr := mustParseWhere(t, "task=*back*")
	if !e.EvalBool(expr, r) {
		t.Fatalf("expected pattern to match")
	}
}

func TestEvalRegexMatch(t *testing.T) {
	e := NewEvaluator()
	r := rec(map[string]string{"task": "nback"})
	expr := mustParseWhere(t, "task~=/^n.*k$/")
	if !e.EvalBool(expr, r) {
		t.Fatalf("expected regex to match")
	}
}

func TestEvalRangeInclusive(t *testing.T) {
	e := NewEvaluator()
	r := rec(map[string]string{"run": "02"})
	expr := mustParseWhere(t, "run=[1:3]")
	if !e.EvalBool(expr, r) {
		t.Fatalf("expected run=02 in [1:3]")
	}
}

func TestEvalNullExistence(t *testing.T) {
	e := NewEvaluator()
	r := rec(map[string]string{})
	expr := mustParseWhere(t, "sub")
	if e.EvalBool(expr, r) {
		t.Fatalf("expected missing sub to be falsy")
	}
	expr2 := mustParseWhere(t, "sub = NULL")
	if !e.EvalBool(expr2, r) {
		t.Fatalf("expected missing sub to equal NULL")
	}
}

func TestEvalNotAndOr(t *testing.T) {
	e := NewEvaluator()
	r := rec(map[string]string{"sub": "01", "task": "rest"})
	expr := mustParseWhere(t, "NOT (task=nback) AND sub=01")
	if !e.EvalBool(expr, r) {
		t.Fatalf("expected NOT/AND combination to match")
	}
}

func TestMatchGlobAndLike(t *testing.T) {
	if !MatchGlob("sub-01_task-nback_bold.nii.gz", "*task-nback*") {
		t.Fatalf("expected glob match")
	}
	if MatchGlob("sub-01_task-rest_bold.nii.gz", "*task-nback*") {
		t.Fatalf("expected glob mismatch")
	}
	if !MatchLike("hello world", "hello%") {
		t.Fatalf("expected LIKE prefix match")
	}
	if !MatchLike("hello", "h_llo") {
		t.Fatalf("expected LIKE single-char wildcard match")
	}
}
