package query

import "testing"

func TestParseBarePredicate(t *testing.T) {
	q, err := Parse(`sub=01 AND task=nback`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Select != nil {
		t.Fatalf("expected nil Select for bare predicate, got %v", q.Select)
	}
	and, ok := q.Where.(AndExpr)
	if !ok || len(and.Operands) != 2 {
		t.Fatalf("expected 2-operand AndExpr, got %#v", q.Where)
	}
}

func TestParseImplicitAndAdjacency(t *testing.T) {
	q, err := Parse(`sub=01 task=nback`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	and, ok := q.Where.(AndExpr)
	if !ok || len(and.Operands) != 2 {
		t.Fatalf("expected implicit AND, got %#v", q.Where)
	}
}

func TestParseParenthesizedNot(t *testing.T) {
	q, err := Parse(`NOT (sub=01 OR sub=02)`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	not, ok := q.Where.(NotExpr)
	if !ok {
		t.Fatalf("expected NotExpr, got %#v", q.Where)
	}
	if _, ok := not.Operand.(OrExpr); !ok {
		t.Fatalf("expected parenthesized OrExpr inside NOT, got %#v", not.Operand)
	}
}

func TestParseSelectAggregateAlias(t *testing.T) {
	q, err := Parse(`SELECT COUNT(*) AS n WHERE sub=01`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.Select) != 1 || q.Select[0].Aggregate == nil {
		t.Fatalf("expected one aggregate select item, got %#v", q.Select)
	}
	if q.Select[0].Label() != "n" {
		t.Fatalf("expected alias label 'n', got %q", q.Select[0].Label())
	}
}

func TestParseCountDistinctStarRejected(t *testing.T) {
	_, err := Parse(`SELECT COUNT(DISTINCT *) WHERE sub=01`)
	if err == nil {
		t.Fatalf("expected COUNT(DISTINCT *) to be rejected")
	}
}

func TestParseNonCountStarRejected(t *testing.T) {
	_, err := Parse(`SELECT SUM(*) WHERE sub=01`)
	if err == nil {
		t.Fatalf("expected SUM(*) to be rejected")
	}
}

func TestParseRangeValue(t *testing.T) {
	q, err := Parse(`WHERE run=[1:3]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cmp, ok := q.Where.(CompareExpr)
	if !ok {
		t.Fatalf("expected CompareExpr, got %#v", q.Where)
	}
	if _, ok := cmp.Right.(RangeValue); !ok {
		t.Fatalf("expected RangeValue, got %#v", cmp.Right)
	}
}

func TestParseGroupByHavingOrderFormat(t *testing.T) {
	q, err := Parse(`SELECT task, COUNT(*) AS n WHERE sub=01 GROUP BY task HAVING COUNT(*) > 1 ORDER BY n DESC FORMAT json`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.GroupBy) != 1 || q.GroupBy[0].String() != "task" {
		t.Fatalf("expected GROUP BY task, got %#v", q.GroupBy)
	}
	if q.Having == nil {
		t.Fatalf("expected HAVING clause")
	}
	if len(q.OrderBy) != 1 || !q.OrderBy[0].Desc {
		t.Fatalf("expected ORDER BY n DESC, got %#v", q.OrderBy)
	}
	if q.Format != "json" {
		t.Fatalf("expected FORMAT json, got %q", q.Format)
	}
}

func TestParseKeywordAsTrailingSegment(t *testing.T) {
	q, err := Parse(`participants.group = control`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cmp, ok := q.Where.(CompareExpr)
	if !ok || cmp.Left.String() != "participants.group" {
		t.Fatalf("expected participants.group compare, got %#v", q.Where)
	}
}

func TestParseTooDeepExpressionRejected(t *testing.T) {
	text := ""
	for i := 0; i < MaxExpressionDepth+10; i++ {
		text += "NOT "
	}
	text += "sub=01"
	_, err := Parse(text)
	if err == nil {
		t.Fatalf("expected deeply nested NOT chain to be rejected")
	}
}

func TestParseEmptyQueryIsSelectAllNoWhere(t *testing.T) {
	q, err := Parse(``)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Where != nil {
		t.Fatalf("expected nil Where for empty query, got %#v", q.Where)
	}
}
