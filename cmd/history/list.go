package history

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Quidge/conform/internal/stage"
	"github.com/Quidge/conform/internal/state"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List recorded runs",
	Long: `List recorded runs, most recent first, optionally filtered by stage.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var (
	listStageFlag string
	listLimitFlag int
)

func init() {
	listCmd.Flags().StringVar(&listStageFlag, "stage", "", "filter by stage")
	listCmd.Flags().IntVarP(&listLimitFlag, "limit", "n", 20, "maximum number of runs to show (0 for all)")
}

func runList(cmd *cobra.Command, _ []string) error {
	if listStageFlag != "" {
		if _, err := stage.FromName(listStageFlag); err != nil {
			return err
		}
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(state.ListOptions{Stage: listStageFlag, Limit: listLimitFlag})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTAGE\tRESULT\tMISMATCHES\tFIXTURES\tSTARTED\tDURATION")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			state.ShortID(run.ID),
			run.Stage,
			result(run),
			run.Mismatches,
			run.Evaluated,
			humanize.Time(run.StartedAt),
			run.Duration,
		)
	}
	return w.Flush()
}
