package history

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize/english"
	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old runs",
	Long: `Delete runs that started longer ago than --older-than.

Ages accept Go durations (72h, 90m) and a day suffix (30d).`,
	Args: cobra.NoArgs,
	RunE: runPrune,
}

var (
	pruneOlderThanFlag string
	pruneAllFlag       bool
)

func init() {
	pruneCmd.Flags().StringVar(&pruneOlderThanFlag, "older-than", "30d", "delete runs older than this age")
	pruneCmd.Flags().BoolVar(&pruneAllFlag, "all", false, "delete every recorded run")
}

func runPrune(cmd *cobra.Command, _ []string) error {
	cutoff := time.Now()
	if !pruneAllFlag {
		age, err := parseAge(pruneOlderThanFlag)
		if err != nil {
			return err
		}
		cutoff = cutoff.Add(-age)
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := db.DeleteRunsBefore(cutoff)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", english.Plural(n, "run", ""))
	return nil
}

// parseAge parses a non-negative duration, accepting a "d" suffix for days.
func parseAge(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid age %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid age %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid age %q: must not be negative", s)
	}
	return d, nil
}
