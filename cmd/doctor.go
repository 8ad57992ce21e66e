package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/dustin/go-humanize/english"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Quidge/conform/internal/config"
	"github.com/Quidge/conform/internal/fixture"
	"github.com/Quidge/conform/internal/gitutil"
	"github.com/Quidge/conform/internal/pathutil"
	"github.com/Quidge/conform/internal/report"
	"github.com/Quidge/conform/internal/stage"
	"github.com/Quidge/conform/internal/toolchain"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the compiler, linker and fixtures are in place",
	Long: `Check the test installation without running any fixture.

Doctor resolves the compiler and the linker driver, looks for the support
object and counts the fixtures of every stage. It exits 3 when a tool cannot
be found, 1 when the fixture root or support object is missing, and 0 otherwise.
A missing stage directory is only a warning.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// checkup prints one line per check and remembers the worst outcome.
type checkup struct {
	out  io.Writer
	ok   *color.Color
	warn *color.Color
	fail *color.Color
	code int
}

func newCheckup(out io.Writer, useColor bool) *checkup {
	c := &checkup{
		out:  out,
		ok:   color.New(color.FgGreen),
		warn: color.New(color.FgYellow),
		fail: color.New(color.FgRed, color.Bold),
	}
	for _, col := range []*color.Color{c.ok, c.warn, c.fail} {
		if useColor {
			col.EnableColor()
		} else {
			col.DisableColor()
		}
	}
	return c
}

func (c *checkup) pass(format string, args ...any) {
	fmt.Fprintf(c.out, "%s %s\n", c.ok.Sprint("ok  "), fmt.Sprintf(format, args...))
}

func (c *checkup) warning(format string, args ...any) {
	fmt.Fprintf(c.out, "%s %s\n", c.warn.Sprint("warn"), fmt.Sprintf(format, args...))
}

func (c *checkup) failure(code int, format string, args ...any) {
	fmt.Fprintf(c.out, "%s %s\n", c.fail.Sprint("FAIL"), fmt.Sprintf(format, args...))
	if code > c.code {
		c.code = code
	}
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.LoadFromCwd(config.FlagOverrides{ConfigPath: configFlag, Color: colorFlag})
	if err != nil {
		return err
	}
	c := newCheckup(out, colorEnabled(cfg.Color, out))

	if cfg.ConfigPath != "" {
		c.pass("config %s", cfg.ConfigPath)
	} else {
		c.warning("no %s found, using defaults", config.ProjectConfigFilename)
	}

	// Compiler
	if path, err := toolchain.LookPath(cfg.Compiler); err != nil {
		c.failure(report.ExitToolError, "compiler %s: %v", cfg.Compiler, err)
	} else {
		c.pass("compiler %s%s", path, compilerRevision(filepath.Dir(path)))
	}

	// Linker
	linker, err := toolchain.GetLinker(toolchain.LinkerConfig{Type: cfg.LinkerType, Path: cfg.LinkerPath})
	if err != nil {
		c.failure(report.ExitConfig, "linker: %v", err)
	} else if driver, ok := linker.(*toolchain.DriverLinker); ok {
		if path, err := toolchain.LookPath(driver.Driver); err != nil {
			c.failure(report.ExitToolError, "linker %s: %v", driver.Driver, err)
		} else {
			c.pass("linker %s", path)
		}
	}

	// Fixtures
	if !pathutil.ExistsAndIsDir(cfg.FixtureRoot) {
		c.failure(report.ExitConfig, "fixture root %s is not a directory", cfg.FixtureRoot)
	} else {
		for _, s := range stage.All() {
			spec, err := stage.Lookup(s)
			if err != nil {
				return err
			}
			checkStageDir(c, cfg, spec)
		}
	}

	support := pathutil.ResolveRelative(cfg.FixtureRoot, cfg.SupportObject)
	if pathutil.ExistsAndIsFile(support) {
		c.pass("support object %s", support)
	} else {
		c.failure(report.ExitConfig, "support object %s not found (needed by the compile stage)", support)
	}

	if c.code != report.ExitOK {
		return &exitError{code: c.code}
	}
	return nil
}

// compilerRevision describes the checkout a compiler binary was built in, or
// returns "" outside a git repository.
func compilerRevision(dir string) string {
	rev, err := gitutil.Describe(dir)
	if err != nil {
		return ""
	}
	root, err := gitutil.RepoRoot(dir)
	if err != nil {
		return fmt.Sprintf(" (%s)", rev)
	}
	return fmt.Sprintf(" (%s in %s)", rev, root)
}

func checkStageDir(c *checkup, cfg config.MergedConfig, spec stage.Spec) {
	dir := filepath.Join(cfg.FixtureRoot, spec.Dir)
	if !pathutil.ExistsAndIsDir(dir) {
		c.warning("%s: %s not found", spec.Stage, dir)
		return
	}

	fixtures, err := fixture.Discover(dir, cfg.FixtureExt)
	if err != nil {
		c.failure(report.ExitConfig, "%s: %v", spec.Stage, err)
		return
	}

	var good, bad int
	for _, f := range fixtures {
		if f.Kind == fixture.ExpectSuccess {
			good++
		} else {
			bad++
		}
	}
	if len(fixtures) == 0 {
		c.warning("%s: %s has no %s fixtures", spec.Stage, dir, cfg.FixtureExt)
		return
	}
	c.pass("%s: %s (%d good, %d bad)", spec.Stage, english.Plural(len(fixtures), "fixture", ""), good, bad)
}
