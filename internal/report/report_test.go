package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/Quidge/conform/internal/fixture"
	"github.com/Quidge/conform/internal/stage"
)

func TestMismatchLine(t *testing.T) {
	tests := []struct {
		name string
		m    Mismatch
		want string
	}{
		{
			name: "incorrectly failed",
			m:    Mismatch{Fixture: "test_lex/good_a.cminor", Expected: fixture.ExpectSuccess, Actual: ActualFail, Reason: ReasonIncorrectlyFailed},
			want: "test_lex/good_a.cminor test incorrectly failed",
		},
		{
			name: "incorrectly passed",
			m:    Mismatch{Fixture: "test_parse/bad_missing_semicolon.cminor", Expected: fixture.ExpectFailure, Actual: ActualPass, Reason: ReasonIncorrectlyPassed},
			want: "test_parse/bad_missing_semicolon.cminor test incorrectly passed",
		},
		{
			name: "assembly",
			m:    Mismatch{Fixture: "test_compile/good_add.cminor", Expected: fixture.ExpectSuccess, Actual: ActualFail, Reason: ReasonAssemblyFailed},
			want: "test_compile/good_add.cminor assembly doesn't compile",
		},
		{
			name: "timed out",
			m:    Mismatch{Fixture: "test_lex/good_loop.cminor", Expected: fixture.ExpectSuccess, Actual: ActualError, Reason: ReasonTimedOut},
			want: "test_lex/good_loop.cminor test timed out",
		},
		{
			name: "tool unavailable",
			m:    Mismatch{Fixture: "test_lex/good_a.cminor", Expected: fixture.ExpectSuccess, Actual: ActualError, Reason: ReasonToolUnavailable, Detail: "./cminor: no such file"},
			want: "test_lex/good_a.cminor: tool unavailable: ./cminor: no such file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.Line(); got != tt.want {
				t.Errorf("Line() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	t.Run("clean", func(t *testing.T) {
		r := New(stage.Lex)
		if r.ExitCode() != ExitOK || !r.OK() {
			t.Errorf("expected clean report, got exit %d", r.ExitCode())
		}
	})

	t.Run("mismatch", func(t *testing.T) {
		r := New(stage.Lex)
		r.Add(Mismatch{Fixture: "a", Reason: ReasonIncorrectlyFailed})
		if r.ExitCode() != ExitMismatch {
			t.Errorf("ExitCode() = %d, want %d", r.ExitCode(), ExitMismatch)
		}
	})

	t.Run("tool error outranks mismatch", func(t *testing.T) {
		r := New(stage.Lex)
		r.Add(Mismatch{Fixture: "a", Reason: ReasonIncorrectlyFailed})
		r.Add(Mismatch{Fixture: "b", Reason: ReasonToolUnavailable})
		if r.ExitCode() != ExitToolError {
			t.Errorf("ExitCode() = %d, want %d", r.ExitCode(), ExitToolError)
		}
		if r.ToolErrors() != 1 {
			t.Errorf("ToolErrors() = %d, want 1", r.ToolErrors())
		}
	})
}

func TestSortAndEqual(t *testing.T) {
	a := New(stage.Parse)
	a.Add(Mismatch{Fixture: "test_parse/good_b.cminor", Reason: ReasonIncorrectlyFailed})
	a.Add(Mismatch{Fixture: "test_parse/bad_a.cminor", Reason: ReasonIncorrectlyPassed})

	b := New(stage.Parse)
	b.Add(Mismatch{Fixture: "test_parse/bad_a.cminor", Reason: ReasonIncorrectlyPassed})
	b.Add(Mismatch{Fixture: "test_parse/good_b.cminor", Reason: ReasonIncorrectlyFailed})

	if !Equal(a, b) {
		t.Error("expected reports to be equal regardless of order")
	}

	a.Sort()
	if a.Mismatches[0].Fixture != "test_parse/bad_a.cminor" {
		t.Errorf("Sort() did not order by path: %v", a.Mismatches)
	}

	c := New(stage.Parse)
	c.Add(Mismatch{Fixture: "test_parse/bad_a.cminor", Reason: ReasonIncorrectlyPassed})
	c.Add(Mismatch{Fixture: "test_parse/bad_a.cminor", Reason: ReasonIncorrectlyPassed})
	if Equal(b, c) {
		t.Error("expected reports with different entries to differ")
	}
}

func TestSummary(t *testing.T) {
	r := New(stage.Compile)
	r.Evaluated = 3
	r.Skipped = 2
	r.Duration = 1500 * time.Millisecond
	r.Add(Mismatch{Fixture: "x", Reason: ReasonAssemblyFailed})

	got := r.Summary()
	want := "compile: 3 fixtures, 1 mismatch, 2 skipped (1.5s)"
	if got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
}

func TestWriter(t *testing.T) {
	r := New(stage.Lex)
	r.Add(Mismatch{
		Fixture:  "test_lex/good_a.cminor",
		Expected: fixture.ExpectSuccess,
		Actual:   ActualFail,
		Reason:   ReasonIncorrectlyFailed,
		Detail:   "1:3: unexpected character",
	})

	t.Run("plain", func(t *testing.T) {
		var buf bytes.Buffer
		if err := NewWriter(&buf, false, false).Mismatches(r); err != nil {
			t.Fatal(err)
		}
		if buf.String() != "test_lex/good_a.cminor test incorrectly failed\n" {
			t.Errorf("unexpected output: %q", buf.String())
		}
	})

	t.Run("verbose includes detail", func(t *testing.T) {
		var buf bytes.Buffer
		if err := NewWriter(&buf, false, true).Mismatches(r); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "    1:3: unexpected character") {
			t.Errorf("expected detail in output: %q", buf.String())
		}
	})

	t.Run("color", func(t *testing.T) {
		var buf bytes.Buffer
		if err := NewWriter(&buf, true, false).Mismatches(r); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "\x1b[") {
			t.Errorf("expected ANSI escape in colored output: %q", buf.String())
		}
	})

	t.Run("clean report is silent", func(t *testing.T) {
		var buf bytes.Buffer
		if err := NewWriter(&buf, false, false).Mismatches(New(stage.Lex)); err != nil {
			t.Fatal(err)
		}
		if buf.Len() != 0 {
			t.Errorf("expected no output, got %q", buf.String())
		}
	})
}

func TestWriteJSON(t *testing.T) {
	r := New(stage.Parse)
	r.Evaluated = 1
	r.Add(Mismatch{Fixture: "test_parse/bad_x.cminor", Expected: fixture.ExpectFailure, Actual: ActualPass, Reason: ReasonIncorrectlyPassed})

	var buf bytes.Buffer
	if err := WriteJSON(&buf, r); err != nil {
		t.Fatal(err)
	}

	var decoded struct {
		Stage      string `json:"stage"`
		Evaluated  int    `json:"evaluated"`
		Mismatches []struct {
			Fixture  string `json:"fixture"`
			Expected string `json:"expected"`
			Actual   string `json:"actual"`
			Reason   string `json:"reason"`
		} `json:"mismatches"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Stage != "parse" || decoded.Evaluated != 1 || len(decoded.Mismatches) != 1 {
		t.Fatalf("unexpected decoded report: %+v", decoded)
	}
	m := decoded.Mismatches[0]
	if m.Expected != "fail" || m.Actual != "pass" || m.Reason != "incorrectly passed" {
		t.Errorf("unexpected mismatch: %+v", m)
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	quiet := NewLogger(&buf, false, false)
	quiet.Debugf("hidden %d", 1)
	quiet.Warnf("shown %d", 2)
	if buf.String() != "warning: shown 2\n" {
		t.Errorf("unexpected output: %q", buf.String())
	}

	buf.Reset()
	loud := NewLogger(&buf, false, true)
	loud.Debugf("running %s", "lex")
	if buf.String() != "running lex\n" {
		t.Errorf("unexpected output: %q", buf.String())
	}

	var nilLogger *Logger
	nilLogger.Warnf("no panic")
	nilLogger.Debugf("no panic")
}
