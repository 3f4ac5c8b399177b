package value

import "testing"

func TestEqualLeadingZero(t *testing.T) {
	if !Equal(Str("01"), Str("1")) {
		t.Fatal("expected 01 == 1")
	}
	if !Equal(Str("1"), Str("01")) {
		t.Fatal("expected 1 == 01")
	}
	if Equal(Str("01"), Str("2")) {
		t.Fatal("expected 01 != 2")
	}
}

func TestEqualStringFallback(t *testing.T) {
	if !Equal(Str("nback"), Str("nback")) {
		t.Fatal("expected equal strings to be equal")
	}
	if Equal(Str("nback"), Str("rest")) {
		t.Fatal("expected different strings to differ")
	}
}

func TestEqualNull(t *testing.T) {
	if !Equal(Null, Null) {
		t.Fatal("null should equal null")
	}
	if Equal(Null, Str("")) {
		t.Fatal("null should not equal empty string")
	}
}

func TestCompareNumeric(t *testing.T) {
	if Compare(Int(1), Int(2)) >= 0 {
		t.Fatal("expected 1 < 2")
	}
	if Compare(Str("10"), Str("9")) <= 0 {
		t.Fatal("expected numeric compare 10 > 9, not lexicographic")
	}
}

func TestFromAnyNested(t *testing.T) {
	v := FromAny(map[string]any{"a": []any{1.0, "x", nil}})
	if v.Kind != KindMap {
		t.Fatalf("expected map, got %v", v.Kind)
	}
	list := v.Map["a"]
	if list.Kind != KindList || len(list.List) != 3 {
		t.Fatalf("expected 3-element list, got %+v", list)
	}
	if list.List[2].Kind != KindNull {
		t.Fatal("expected third element null")
	}
}
