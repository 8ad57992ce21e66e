package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Quidge/conform/internal/config"
	"github.com/Quidge/conform/internal/pathutil"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View configuration",
	Long: `View the conform configuration.

Subcommands:
  show   Print the merged configuration
  path   Print the configuration file locations
  init   Write a global configuration template`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the merged configuration",
	Long: `Print the configuration a run would use, after merging defaults, the
global file, the project file and any --config or --color flag.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file locations",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a global configuration template",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().Bool("force", false, "overwrite existing file")
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadFromCwd(config.FlagOverrides{ConfigPath: configFlag, Color: colorFlag})
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	globalPath, err := config.GlobalConfigPath()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "global:  %s%s\n", globalPath, missingSuffix(globalPath))

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	projectPath := configFlag
	if projectPath == "" {
		if projectPath, err = config.FindProjectConfig(cwd); err != nil {
			return err
		}
	}
	if projectPath == "" {
		fmt.Fprintf(out, "project: (none, run \"conform init\")\n")
	} else {
		fmt.Fprintf(out, "project: %s%s\n", projectPath, missingSuffix(projectPath))
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	force, _ := cmd.Flags().GetBool("force")

	path, err := config.GlobalConfigPath()
	if err != nil {
		return err
	}
	if !force {
		if pathutil.Exists(path) {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(config.GlobalConfigTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
	return nil
}

func missingSuffix(path string) string {
	if !pathutil.Exists(path) {
		return " (not found)"
	}
	return ""
}
