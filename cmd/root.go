package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Quidge/conform/cmd/history"
	"github.com/Quidge/conform/internal/report"
	"github.com/Quidge/conform/internal/stage"
)

var (
	// Version is set at build time
	Version = "dev"

	// Global flags
	configFlag string
	colorFlag  string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "conform STAGE",
	Short: "Run cminor conformance fixtures for one compiler stage",
	Long: `Conform checks a cminor compiler against the fixtures of one pipeline stage.

Each stage has a fixture directory (test_lex, test_parse, test_typecheck,
test_compile). Fixtures named good* must be accepted by the compiler and bad*
fixtures must be rejected. In the compile stage, generated assembly must also
link against the runtime support object.

Nothing is printed when every fixture conforms. Each mismatch is reported as one
line on stderr.

Exit status:
  0  every fixture conformed
  1  usage or configuration error
  2  one or more mismatches
  3  the compiler or linker could not be started`,
	Version:       Version,
	Args:          stageArg,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runStage,
}

// exitError carries a process exit status out of a command without printing
// anything further.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// usageError marks a malformed command line.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// Execute runs the command line and exits with the status it produced.
func Execute() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return exitCode(rootCmd.Execute(), stderr)
}

// exitCode maps a command error to a process exit status, printing it first.
func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return report.ExitOK
	}

	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}

	fmt.Fprintln(stderr, err)

	var cfgErr *stage.ConfigurationError
	var usageErr *usageError
	if errors.As(err, &cfgErr) || errors.As(err, &usageErr) {
		fmt.Fprintf(stderr, "usage: %s\n", rootCmd.UseLine())
		fmt.Fprintf(stderr, "stages: %s\n", strings.Join(stage.Names(), ", "))
	}
	return report.ExitConfig
}

// stageArg validates the positional stage before any configuration or
// fixture is read.
func stageArg(_ *cobra.Command, args []string) error {
	if len(args) > 1 {
		return &usageError{fmt.Errorf("expected one stage, got %d arguments", len(args))}
	}
	name := ""
	if len(args) == 1 {
		name = args[0]
	}
	_, err := stage.FromName(name)
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "project config file (default: nearest .conform.yaml)")
	rootCmd.PersistentFlags().StringVar(&colorFlag, "color", "", "colorize diagnostics (auto|on|off)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err}
	})

	rootCmd.AddCommand(history.Cmd)
}
