package history

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Quidge/conform/internal/report"
	"github.com/Quidge/conform/internal/stage"
	"github.com/Quidge/conform/internal/state"
)

var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a recorded run and its mismatches",
	Long: `Show the details of a recorded run followed by its mismatch lines.

The ID can be a prefix if it uniquely identifies a run.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

var showJSONFlag bool

func init() {
	showCmd.Flags().BoolVar(&showJSONFlag, "json", false, "print the mismatches as JSON")
}

func runShow(cmd *cobra.Command, args []string) error {
	idPrefix := args[0]

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := db.GetRunByPrefix(idPrefix)
	if err != nil {
		return lookupError(idPrefix, err)
	}

	out := cmd.OutOrStdout()
	if showJSONFlag {
		return report.WriteJSON(out, reportFromRun(run))
	}

	fmt.Fprintf(out, "ID:          %s\n", run.ID)
	fmt.Fprintf(out, "Stage:       %s\n", run.Stage)
	fmt.Fprintf(out, "Result:      %s (exit %d)\n", result(run), run.ExitCode)
	fmt.Fprintf(out, "Started:     %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Duration:    %s\n", run.Duration)
	fmt.Fprintf(out, "Fixtures:    %d evaluated, %d skipped\n", run.Evaluated, run.Skipped)
	fmt.Fprintf(out, "Compiler:    %s\n", run.Compiler)
	if run.GitCommit != "" {
		rev := state.ShortID(run.GitCommit)
		if run.GitBranch != "" {
			rev = run.GitBranch + "@" + rev
		}
		fmt.Fprintf(out, "Revision:    %s\n", rev)
	}
	fmt.Fprintf(out, "Root:        %s\n", run.FixtureRoot)

	if len(run.Details) > 0 {
		fmt.Fprintln(out)
		for _, m := range run.Details {
			fmt.Fprintln(out, m.Line())
		}
	}
	return nil
}

// lookupError turns a prefix lookup failure into a user-facing error.
func lookupError(idPrefix string, err error) error {
	var ambErr *state.AmbiguousPrefixError
	switch {
	case errors.Is(err, state.ErrRunNotFound):
		return fmt.Errorf("run %q not found", idPrefix)
	case errors.As(err, &ambErr):
		return FormatAmbiguousPrefixError(ambErr)
	case errors.Is(err, state.ErrInvalidPrefix):
		return fmt.Errorf("invalid run ID %q: must contain only hexadecimal characters", idPrefix)
	}
	return fmt.Errorf("failed to get run: %w", err)
}

// reportFromRun rebuilds the report a recorded run produced.
func reportFromRun(run *state.Run) *report.Report {
	return &report.Report{
		Stage:      stage.Stage(run.Stage),
		Evaluated:  run.Evaluated,
		Skipped:    run.Skipped,
		Mismatches: run.Details,
		StartedAt:  run.StartedAt,
		Duration:   run.Duration,
	}
}
