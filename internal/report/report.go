// Package report models the result of a conformance run: the ordered list of
// fixtures whose actual outcome contradicted their expected kind.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize/english"

	"github.com/Quidge/conform/internal/fixture"
	"github.com/Quidge/conform/internal/stage"
)

// Process exit codes derived from a run.
const (
	ExitOK        = 0
	ExitConfig    = 1
	ExitMismatch  = 2
	ExitToolError = 3
)

// Actual is the observed outcome for a fixture.
type Actual string

const (
	ActualPass  Actual = "pass"
	ActualFail  Actual = "fail"
	ActualError Actual = "error"
)

// Reason describes the nature of a mismatch.
type Reason string

const (
	ReasonIncorrectlyFailed Reason = "incorrectly failed"
	ReasonIncorrectlyPassed Reason = "incorrectly passed"
	ReasonAssemblyFailed    Reason = "assembly doesn't compile"
	ReasonTimedOut          Reason = "timed out"
	ReasonToolUnavailable   Reason = "tool unavailable"
)

// Mismatch is one fixture whose outcome contradicts its expected kind.
type Mismatch struct {
	Fixture  string       `json:"fixture" yaml:"fixture"`
	Expected fixture.Kind `json:"expected" yaml:"expected"`
	Actual   Actual       `json:"actual" yaml:"actual"`
	Reason   Reason       `json:"reason" yaml:"reason"`
	Detail   string       `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Line renders the mismatch as a single diagnostic line.
func (m Mismatch) Line() string {
	switch m.Reason {
	case ReasonAssemblyFailed:
		return fmt.Sprintf("%s %s", m.Fixture, m.Reason)
	case ReasonToolUnavailable:
		return fmt.Sprintf("%s: %s: %s", m.Fixture, m.Reason, m.Detail)
	default:
		return fmt.Sprintf("%s test %s", m.Fixture, m.Reason)
	}
}

// Report aggregates the mismatches of a single stage run.
type Report struct {
	Stage      stage.Stage   `json:"stage"`
	Evaluated  int           `json:"evaluated"`
	Skipped    int           `json:"skipped"`
	Mismatches []Mismatch    `json:"mismatches"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
}

// New returns an empty report for s.
func New(s stage.Stage) *Report {
	return &Report{
		Stage:      s,
		Mismatches: []Mismatch{},
		StartedAt:  time.Now(),
	}
}

// Add records a mismatch.
func (r *Report) Add(m Mismatch) {
	r.Mismatches = append(r.Mismatches, m)
}

// Sort orders mismatches by fixture path, then reason.
func (r *Report) Sort() {
	sort.SliceStable(r.Mismatches, func(i, j int) bool {
		a, b := r.Mismatches[i], r.Mismatches[j]
		if a.Fixture != b.Fixture {
			return a.Fixture < b.Fixture
		}
		return a.Reason < b.Reason
	})
}

// OK reports whether every evaluated fixture conformed.
func (r *Report) OK() bool {
	return len(r.Mismatches) == 0
}

// ToolErrors returns the number of fixtures whose tools could not be started.
func (r *Report) ToolErrors() int {
	n := 0
	for _, m := range r.Mismatches {
		if m.Reason == ReasonToolUnavailable {
			n++
		}
	}
	return n
}

// ExitCode maps the report to a process exit status. Tool launch failures
// outrank plain mismatches.
func (r *Report) ExitCode() int {
	switch {
	case r.ToolErrors() > 0:
		return ExitToolError
	case !r.OK():
		return ExitMismatch
	default:
		return ExitOK
	}
}

// Summary returns a one-line human-readable summary.
func (r *Report) Summary() string {
	s := fmt.Sprintf("%s: %s, %s",
		r.Stage,
		english.Plural(r.Evaluated, "fixture", ""),
		english.Plural(len(r.Mismatches), "mismatch", "mismatches"),
	)
	if r.Skipped > 0 {
		s += fmt.Sprintf(", %d skipped", r.Skipped)
	}
	return s + fmt.Sprintf(" (%s)", r.Duration.Round(time.Millisecond))
}

// Equal reports whether two reports contain the same mismatches, ignoring order.
func Equal(a, b *Report) bool {
	if len(a.Mismatches) != len(b.Mismatches) {
		return false
	}
	counts := make(map[Mismatch]int, len(a.Mismatches))
	for _, m := range a.Mismatches {
		counts[m]++
	}
	for _, m := range b.Mismatches {
		if counts[m] == 0 {
			return false
		}
		counts[m]--
	}
	return true
}
