// Package history provides the `conform history` command group for inspecting
// recorded runs.
package history

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Quidge/conform/internal/config"
	"github.com/Quidge/conform/internal/report"
	"github.com/Quidge/conform/internal/state"
)

// Cmd is the parent command for run history.
var Cmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded runs",
	Long: `Inspect the history of conformance runs.

Every run of "conform STAGE" is recorded unless --no-history is given or the
global config sets history.disabled. Runs are identified by a hex ID; any
unique prefix of it is accepted.`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(pruneCmd)
}

// openDB opens the history database named by the global config.
func openDB() (*state.DB, error) {
	global, err := config.LoadGlobalConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load global config: %w", err)
	}
	path, err := config.ExpandPath(global.History.Path)
	if err != nil {
		return nil, fmt.Errorf("history.path: %w", err)
	}
	db, err := state.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return db, nil
}

// result summarizes a run's exit status in a word.
func result(run *state.Run) string {
	switch run.ExitCode {
	case report.ExitOK:
		return "ok"
	case report.ExitMismatch:
		return "mismatch"
	case report.ExitToolError:
		return "tool error"
	default:
		return fmt.Sprintf("exit %d", run.ExitCode)
	}
}
