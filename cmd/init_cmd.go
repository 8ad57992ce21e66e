package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Quidge/conform/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a .conform.yaml template",
	Long: `Create a .conform.yaml template in the current directory.

The template includes commented examples for all configuration options.
Place it next to the test_<stage> directories.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().Bool("force", false, "overwrite existing file")
	initCmd.Flags().Bool("minimal", false, "write a template without comments")
}

func runInit(cmd *cobra.Command, _ []string) error {
	force, _ := cmd.Flags().GetBool("force")
	minimal, _ := cmd.Flags().GetBool("minimal")

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	configPath := filepath.Join(cwd, config.ProjectConfigFilename)

	// Check if file already exists
	if !force && config.ProjectConfigExists(cwd) {
		return fmt.Errorf("%s already exists (use --force to overwrite)", config.ProjectConfigFilename)
	}

	template := config.ProjectConfigTemplate
	if minimal {
		template = config.ProjectConfigMinimalTemplate
	}
	if err := os.WriteFile(configPath, []byte(template), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", config.ProjectConfigFilename, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", config.ProjectConfigFilename)
	return nil
}
