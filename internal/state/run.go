package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fortio.org/safecast"

	"github.com/Quidge/conform/internal/fixture"
	"github.com/Quidge/conform/internal/report"
)

// Run is one recorded invocation of a stage.
type Run struct {
	ID          string        // 32 hex chars
	Stage       string        // Stage name (lex, parse, typecheck, compile)
	StartedAt   time.Time     // When the run started
	Duration    time.Duration // Wall time, stored at millisecond precision
	Evaluated   int           // Fixtures judged
	Skipped     int           // Fixtures excluded by the compile failure policy
	Mismatches  int           // Number of mismatches, tool errors included
	ToolErrors  int           // Mismatches caused by a tool that could not start
	ExitCode    int           // Process exit status the run produced
	Compiler    string        // Compiler path as configured
	FixtureRoot string        // Fixture root as configured
	GitCommit   string        // HEAD of the compiler's repository (may be empty)
	GitBranch   string        // Branch of the compiler's repository (may be empty)

	// Details holds the individual mismatches. It is populated by GetRun and
	// GetRunByPrefix and left nil by ListRuns.
	Details []report.Mismatch
}

// RunFromReport builds a Run from a finished report.
func RunFromReport(id string, rep *report.Report) *Run {
	return &Run{
		ID:         id,
		Stage:      rep.Stage.String(),
		StartedAt:  rep.StartedAt,
		Duration:   rep.Duration,
		Evaluated:  rep.Evaluated,
		Skipped:    rep.Skipped,
		Mismatches: len(rep.Mismatches),
		ToolErrors: rep.ToolErrors(),
		ExitCode:   rep.ExitCode(),
		Details:    rep.Mismatches,
	}
}

// ErrRunNotFound is returned when a run with the given ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// ErrAmbiguousPrefix is returned when an ID prefix matches multiple runs.
var ErrAmbiguousPrefix = errors.New("ambiguous run ID prefix")

// AmbiguousPrefixError is returned when an ID prefix matches multiple runs.
// It includes the list of matching runs for better error messages.
type AmbiguousPrefixError struct {
	Prefix  string
	Matches []*Run
}

func (e *AmbiguousPrefixError) Error() string {
	return fmt.Sprintf("%s: '%s' matches %d runs", ErrAmbiguousPrefix.Error(), e.Prefix, len(e.Matches))
}

func (e *AmbiguousPrefixError) Unwrap() error {
	return ErrAmbiguousPrefix
}

// ErrInvalidPrefix is returned when an ID prefix contains non-hex characters.
var ErrInvalidPrefix = errors.New("invalid ID prefix: must contain only hexadecimal characters")

// isHexString returns true if s contains only hexadecimal characters.
func isHexString(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const runColumns = `id, stage, started_at, duration_ms, evaluated, skipped, mismatches,
		       tool_errors, exit_code, compiler, fixture_root, git_commit, git_branch`

// CreateRun inserts a run and its mismatches in a single transaction.
func (db *DB) CreateRun(run *Run) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Stage,
		run.StartedAt.UTC().Format(timeLayout),
		run.Duration.Milliseconds(),
		run.Evaluated,
		run.Skipped,
		run.Mismatches,
		run.ToolErrors,
		run.ExitCode,
		run.Compiler,
		run.FixtureRoot,
		nullString(run.GitCommit),
		nullString(run.GitBranch),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	for i, m := range run.Details {
		_, err := tx.Exec(`
			INSERT INTO run_mismatches (run_id, seq, fixture, expected, actual, reason, detail)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, m.Fixture, string(m.Expected), string(m.Actual), string(m.Reason), nullString(m.Detail),
		)
		if err != nil {
			return fmt.Errorf("failed to record mismatch %s: %w", m.Fixture, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// GetRun retrieves a run and its mismatches by full ID.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run.Details, err = db.RunMismatches(run.ID); err != nil {
		return nil, err
	}
	return run, nil
}

// GetRunByPrefix retrieves a run by ID prefix.
// Returns ErrRunNotFound if no match, ErrAmbiguousPrefix if multiple matches,
// or ErrInvalidPrefix if the prefix contains non-hex characters.
func (db *DB) GetRunByPrefix(prefix string) (*Run, error) {
	if prefix == "" || !isHexString(prefix) {
		return nil, ErrInvalidPrefix
	}

	rows, err := db.Query(`SELECT `+runColumns+` FROM runs WHERE id LIKE ? || '%' ORDER BY started_at DESC`, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	runs, err := collectRuns(rows)
	if err != nil {
		return nil, err
	}

	switch len(runs) {
	case 0:
		return nil, ErrRunNotFound
	case 1:
		run := runs[0]
		if run.Details, err = db.RunMismatches(run.ID); err != nil {
			return nil, err
		}
		return run, nil
	default:
		return nil, &AmbiguousPrefixError{Prefix: prefix, Matches: runs}
	}
}

// DeleteRun removes a run and its mismatches.
func (db *DB) DeleteRun(id string) error {
	result, err := db.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return ErrRunNotFound
	}
	return nil
}

// DeleteRunsBefore removes every run that started before cutoff and returns
// how many were removed.
func (db *DB) DeleteRunsBefore(cutoff time.Time) (int, error) {
	result, err := db.Exec("DELETE FROM runs WHERE started_at < ?", cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return safecast.Conv[int](rows)
}

// RunMismatches returns the mismatches recorded for a run, in report order.
func (db *DB) RunMismatches(runID string) ([]report.Mismatch, error) {
	rows, err := db.Query(`
		SELECT fixture, expected, actual, reason, detail
		FROM run_mismatches WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query mismatches: %w", err)
	}
	defer rows.Close()

	mismatches := []report.Mismatch{}
	for rows.Next() {
		var m report.Mismatch
		var expected, actual, reason string
		var detail sql.NullString
		if err := rows.Scan(&m.Fixture, &expected, &actual, &reason, &detail); err != nil {
			return nil, fmt.Errorf("failed to scan mismatch: %w", err)
		}
		m.Expected = fixture.Kind(expected)
		m.Actual = report.Actual(actual)
		m.Reason = report.Reason(reason)
		m.Detail = detail.String
		mismatches = append(mismatches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mismatches: %w", err)
	}
	return mismatches, nil
}

// scanner is an interface for sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanRun scans a row into a Run struct.
func scanRun(s scanner) (*Run, error) {
	var run Run
	var startedAt string
	var durationMS int64
	var gitCommit, gitBranch sql.NullString

	err := s.Scan(
		&run.ID,
		&run.Stage,
		&startedAt,
		&durationMS,
		&run.Evaluated,
		&run.Skipped,
		&run.Mismatches,
		&run.ToolErrors,
		&run.ExitCode,
		&run.Compiler,
		&run.FixtureRoot,
		&gitCommit,
		&gitBranch,
	)
	if err != nil {
		return nil, err
	}

	run.GitCommit = gitCommit.String
	run.GitBranch = gitBranch.String
	run.Duration = time.Duration(durationMS) * time.Millisecond

	run.StartedAt, err = time.Parse(timeLayout, startedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at: %w", err)
	}

	return &run, nil
}

func collectRuns(rows *sql.Rows) ([]*Run, error) {
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// nullString converts an empty string to sql.NullString for optional fields.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
