package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Quidge/conform/internal/stage"
)

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "List the pipeline stages",
	Long: `List every stage with the compiler mode it exercises and the fixture
directory it reads. Stages marked "link" also assemble and link the generated
code against the support object.`,
	Args: cobra.NoArgs,
	RunE: runStages,
}

func init() {
	rootCmd.AddCommand(stagesCmd)
}

func runStages(cmd *cobra.Command, _ []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tMODE\tDIRECTORY\tBUILD")
	for _, s := range stage.All() {
		spec, err := stage.Lookup(s)
		if err != nil {
			return err
		}
		build := "-"
		if spec.SecondaryBuild {
			build = "link"
		}
		fmt.Fprintf(w, "%s\t-%s\t%s\t%s\n", s, spec.Mode, spec.Dir, build)
	}
	return w.Flush()
}
