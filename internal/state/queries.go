package state

import (
	"fmt"
	"strings"
)

// ListOptions specifies filters for listing runs.
type ListOptions struct {
	Stage string // Filter by stage name
	Limit int    // Maximum number of runs; 0 means no limit
}

// ListRuns returns runs matching the given filters, most recent first.
// Mismatch details are not loaded.
func (db *DB) ListRuns(opts ListOptions) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`

	conditions, args := opts.where()
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY started_at DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return collectRuns(rows)
}

// CountRuns returns the number of runs matching the given filters. Limit is ignored.
func (db *DB) CountRuns(opts ListOptions) (int, error) {
	query := "SELECT COUNT(*) FROM runs"

	conditions, args := opts.where()
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	var count int
	err := db.QueryRow(query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}

	return count, nil
}

func (opts ListOptions) where() ([]string, []any) {
	var conditions []string
	var args []any

	if opts.Stage != "" {
		conditions = append(conditions, "stage = ?")
		args = append(args, opts.Stage)
	}

	return conditions, args
}
