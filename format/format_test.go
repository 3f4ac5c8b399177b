package format

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/biql-lang/biql/query"
	"github.com/biql-lang/biql/value"
)

func sampleRowSet() *query.RowSet {
	rs := query.NewRowSet([]string{"sub", "task", "n"})
	rs.AddRow([]value.Value{value.Str("01"), value.Str("nback"), value.Int(4)})
	rs.AddRow([]value.Value{value.Str("02"), value.Null, value.Int(2)})
	return rs
}

func TestCSVFormatterSanitizesFormulaInjection(t *testing.T) {
	rs := query.NewRowSet([]string{"note"})
	rs.AddRow([]value.Value{value.Str("=cmd|'/c calc'!A1")})
	var buf bytes.Buffer
	f := NewCSVFormatter(&buf, ',')
	if err := f.Format(rs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(buf.String(), "\n=cmd") {
		t.Fatalf("expected leading '=' to be sanitized, got %q", buf.String())
	}
}

func TestCSVFormatterHeaderAndRows(t *testing.T) {
	var buf bytes.Buffer
	f := NewCSVFormatter(&buf, ',')
	if err := f.Format(sampleRowSet()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "sub,task,n\n") {
		t.Fatalf("expected header row, got %q", out)
	}
	if !strings.Contains(out, "01,nback,4") {
		t.Fatalf("expected data row, got %q", out)
	}
}

func TestJSONFormatterWritesArrayOfObjects(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(&buf)
	if err := f.Format(sampleRowSet()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := strings.TrimSpace(buf.String())
	if !strings.HasPrefix(out, "[") || !strings.HasSuffix(out, "]") {
		t.Fatalf("expected a single JSON array, got %q", out)
	}
	var decoded []map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("expected valid JSON array via a single Unmarshal: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(decoded))
	}
}

func TestPathsFormatterRequiresPathColumn(t *testing.T) {
	var buf bytes.Buffer
	f := NewPathsFormatter(&buf)
	if err := f.Format(sampleRowSet()); err == nil {
		t.Fatalf("expected error when no filepath/relative_path column present")
	}
}

func TestPathsFormatterWritesPaths(t *testing.T) {
	rs := query.NewRowSet([]string{"filepath"})
	rs.AddRow([]value.Value{value.Str("/ds/sub-01/anat/sub-01_T1w.nii.gz")})
	var buf bytes.Buffer
	f := NewPathsFormatter(&buf)
	if err := f.Format(rs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "/ds/sub-01/anat/sub-01_T1w.nii.gz" {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestNewUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	if _, err := New("xml", &buf); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
