package dsl

import (
	"testing"
	"time"
)

func TestCompileFieldTerms(t *testing.T) {
	q, err := Compile("level:ERROR AND module:bootstrap")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if q.Where != "level = ? AND module = ?" {
		t.Fatalf("Where = %q", q.Where)
	}
	if len(q.Params) != 2 || q.Params[0] != "ERROR" || q.Params[1] != "bootstrap" {
		t.Fatalf("Params = %v", q.Params)
	}
	if q.HasPattern() {
		t.Fatal("unexpected message pattern")
	}
}

func TestCompileSymbolicAliases(t *testing.T) {
	q, err := Compile("source:telegram && process:poller || level:WARN")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if q.Where != "source = ? AND process = ? OR level = ?" {
		t.Fatalf("Where = %q", q.Where)
	}
}

func TestCompileMessageBecomesPattern(t *testing.T) {
	q, err := Compile(`message:"fail.*"`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if q.Where != "" || len(q.Params) != 0 {
		t.Fatalf("message term leaked into SQL: %q %v", q.Where, q.Params)
	}
	if !q.HasPattern() || q.Pattern.String() != "fail.*" {
		t.Fatalf("Pattern = %v", q.Pattern)
	}
	if !q.Pattern.MatchString("failure to parse int") {
		t.Fatal("pattern did not match expected message")
	}
}

func TestCompileLastMessageTermWins(t *testing.T) {
	q, err := Compile(`message:"first" AND message:"second"`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if q.Pattern.String() != "second" {
		t.Fatalf("Pattern = %q, want second", q.Pattern.String())
	}
}

func TestCompileTimestampComparison(t *testing.T) {
	q, err := Compile("timestamp:>2025-04-01T00:00:00")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if q.Where != "timestamp > ?" {
		t.Fatalf("Where = %q", q.Where)
	}
	want := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	if len(q.Params) != 1 || q.Params[0] != want {
		t.Fatalf("Params = %v, want [%d]", q.Params, want)
	}
}

func TestCompileBadTimestampDropped(t *testing.T) {
	q, err := Compile("timestamp:>yesterday AND level:INFO")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if q.Where != "level = ?" {
		t.Fatalf("Where = %q", q.Where)
	}
	if q.Skipped != 1 {
		t.Fatalf("Skipped = %d", q.Skipped)
	}
}

func TestCompileContextContainment(t *testing.T) {
	q, err := Compile("context:user_id")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if q.Where != "context LIKE ?" {
		t.Fatalf("Where = %q", q.Where)
	}
	if len(q.Params) != 1 || q.Params[0] != "%user_id%" {
		t.Fatalf("Params = %v", q.Params)
	}
}

func TestCompileDanglingConnectives(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"AND level:INFO", "level = ?"},
		{`message:"x" AND level:INFO`, "level = ?"},
		{`level:INFO AND message:"x"`, "level = ?"},
		{"level:INFO AND", "level = ?"},
		{"NOT module:worker.go", "NOT module = ?"},
	}
	for _, tc := range cases {
		q, err := Compile(tc.in)
		if err != nil {
			t.Fatalf("Compile(%q): %v", tc.in, err)
		}
		if q.Where != tc.want {
			t.Errorf("Compile(%q).Where = %q, want %q", tc.in, q.Where, tc.want)
		}
	}
}

func TestCompileDivertedMiddleTermCollapsesConnectives(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`level:INFO AND message:"x" AND module:main.go`, "level = ? AND module = ?"},
		{`level:INFO AND bogus AND module:main.go`, "level = ? AND module = ?"},
		{`level:INFO AND NOT message:"x" AND module:main.go`, "level = ? AND module = ?"},
		{`level:INFO OR message:"x" OR module:main.go`, "level = ? OR module = ?"},
		// A NOT whose term survives is untouched.
		{`level:INFO AND NOT module:main.go`, "level = ? AND NOT module = ?"},
	}
	for _, tc := range cases {
		q, err := Compile(tc.in)
		if err != nil {
			t.Fatalf("Compile(%q): %v", tc.in, err)
		}
		if q.Where != tc.want {
			t.Errorf("Compile(%q).Where = %q, want %q", tc.in, q.Where, tc.want)
		}
	}
}

func TestCompileMalformedTermsSkipped(t *testing.T) {
	q, err := Compile("garbage AND unknownfield:x AND level:ERROR")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if q.Where != "level = ?" {
		t.Fatalf("Where = %q", q.Where)
	}
	if q.Skipped != 2 {
		t.Fatalf("Skipped = %d, want 2", q.Skipped)
	}
}

func TestCompileEmptyInput(t *testing.T) {
	for _, in := range []string{"", "   ", "nonsense here", "AND OR"} {
		q, err := Compile(in)
		if err != nil {
			t.Fatalf("Compile(%q): %v", in, err)
		}
		if q.Where != "" || len(q.Params) != 0 || q.HasPattern() {
			t.Errorf("Compile(%q) = %+v, want empty query", in, q)
		}
	}
}

func TestCompileOperators(t *testing.T) {
	q, err := Compile("timestamp:>=2025-01-02 AND timestamp:<2025-02-01")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if q.Where != "timestamp >= ? AND timestamp < ?" {
		t.Fatalf("Where = %q", q.Where)
	}
}

func TestCompileInvalidPatternFails(t *testing.T) {
	_, err := Compile(`message:"[unclosed"`)
	if err == nil {
		t.Fatal("expected an error for an invalid message regex")
	}
}

func TestCompileQuotedValue(t *testing.T) {
	q, err := Compile(`event_run_id:"b66a4be0-19d1-4eab-899d-9f474495fda3"`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(q.Params) != 1 || q.Params[0] != "b66a4be0-19d1-4eab-899d-9f474495fda3" {
		t.Fatalf("Params = %v", q.Params)
	}
}
