package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Quidge/conform/internal/cache"
	"github.com/Quidge/conform/internal/config"
	"github.com/Quidge/conform/internal/gitutil"
	"github.com/Quidge/conform/internal/report"
	"github.com/Quidge/conform/internal/runner"
	"github.com/Quidge/conform/internal/state"
	"github.com/Quidge/conform/internal/toolchain"
)

// Run flags
var (
	compilerFlag  string
	rootFlag      string
	jobsFlag      int
	timeoutFlag   string
	linkerFlag    string
	policyFlag    string
	jsonFlag      bool
	summaryFlag   bool
	noHistoryFlag bool
	cacheFlag     bool
)

func init() {
	f := rootCmd.Flags()
	f.StringVar(&compilerFlag, "compiler", "", "compiler under test (default from config: ./cminor)")
	f.StringVar(&rootFlag, "root", "", "directory holding the test_<stage> directories")
	f.IntVarP(&jobsFlag, "jobs", "j", 0, "fixtures evaluated concurrently; -1 uses every CPU (default from config)")
	f.StringVar(&timeoutFlag, "timeout", "", "limit for each compiler or linker invocation, 0 disables (default from config: 30s)")
	f.StringVar(&linkerFlag, "linker", "", "native toolchain for the compile stage (cc, gcc, clang)")
	f.StringVar(&policyFlag, "compile-failures", "", "bad* fixtures in the compile stage: skip or reject-codegen")
	f.BoolVar(&jsonFlag, "json", false, "write the report as JSON to stdout")
	f.BoolVar(&summaryFlag, "summary", false, "print a summary line after the mismatches")
	f.BoolVar(&noHistoryFlag, "no-history", false, "do not record this run in the history database")
	f.BoolVar(&cacheFlag, "cache", false, "reuse verdicts for unchanged fixtures and compiler")
}

// flagOverrides collects the flags that override configuration.
func flagOverrides() config.FlagOverrides {
	o := config.FlagOverrides{
		ConfigPath:           configFlag,
		Compiler:             compilerFlag,
		Root:                 rootFlag,
		Timeout:              timeoutFlag,
		Color:                colorFlag,
		LinkerType:           linkerFlag,
		CompileFailurePolicy: policyFlag,
		NoHistory:            noHistoryFlag,
		Cache:                cacheFlag,
	}
	if jobsFlag != 0 {
		jobs := jobsFlag
		o.Jobs = &jobs
	}
	return o
}

func runStage(cmd *cobra.Command, args []string) error {
	stderr := cmd.ErrOrStderr()

	cfg, err := config.LoadFromCwd(flagOverrides())
	if err != nil {
		return err
	}

	useColor := colorEnabled(cfg.Color, stderr)
	logger := report.NewLogger(stderr, useColor, verbose)
	if cfg.ConfigPath != "" {
		logger.Debugf("using %s", cfg.ConfigPath)
	}

	r, err := newRunner(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := r.Run(ctx, args[0])
	if err != nil {
		return err
	}

	if err := writeReport(cmd.OutOrStdout(), stderr, rep, useColor); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if cfg.HistoryEnabled {
		recordRun(cfg, rep, logger)
	}

	if code := rep.ExitCode(); code != report.ExitOK {
		return &exitError{code: code}
	}
	return nil
}

// newRunner wires the configured compiler, linker and cache into a Runner.
func newRunner(cfg config.MergedConfig, logger *report.Logger) (*runner.Runner, error) {
	policy, err := runner.ParsePolicy(cfg.CompileFailurePolicy)
	if err != nil {
		return nil, err
	}

	linker, err := toolchain.GetLinker(toolchain.LinkerConfig{
		Type:    cfg.LinkerType,
		Path:    cfg.LinkerPath,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}

	r := &runner.Runner{
		Root:             cfg.FixtureRoot,
		FixtureExt:       cfg.FixtureExt,
		ArtifactSuffix:   cfg.ArtifactSuffix,
		ExecutableSuffix: cfg.ExecutableSuffix,
		SupportObject:    cfg.SupportObject,
		Compiler:         toolchain.NewCompiler(cfg.Compiler, cfg.Timeout),
		Linker:           linker,
		Jobs:             cfg.Jobs,
		CompileFailures:  policy,
		Logger:           logger,
	}

	if cfg.CacheEnabled {
		r.Cache, r.CacheIdentity = openCache(cfg, linker, logger)
	}
	return r, nil
}

// openCache opens the verdict cache and derives the toolchain identity its
// keys depend on. Any failure runs without a cache.
func openCache(cfg config.MergedConfig, linker toolchain.Linker, logger *report.Logger) (*cache.Cache, []byte) {
	identity, err := toolchainIdentity(cfg.Compiler, linker, cfg.Timeout)
	if err != nil {
		logger.Warnf("cache disabled: %v", err)
		return nil, nil
	}

	c, err := cache.Open(cfg.CacheDir)
	if err != nil {
		logger.Warnf("cache disabled: %v", err)
		return nil, nil
	}
	logger.Debugf("cache: %s", c.Dir())
	return c, identity[:]
}

// toolchainIdentity digests the compiler binary, the linker driver binary and
// the invocation timeout. A linker driver that cannot be resolved contributes
// only its name; links through it fail and are never cached.
func toolchainIdentity(compiler string, linker toolchain.Linker, timeout time.Duration) (cache.Key, error) {
	path, err := toolchain.LookPath(compiler)
	if err != nil {
		return cache.Key{}, err
	}
	compilerDigest, err := cache.FileDigest(path)
	if err != nil {
		return cache.Key{}, err
	}

	var driver string
	var driverDigest []byte
	if d, ok := linker.(*toolchain.DriverLinker); ok {
		driver = d.Driver
		if path, err := toolchain.LookPath(driver); err == nil {
			if driverDigest, err = cache.FileDigest(path); err != nil {
				return cache.Key{}, err
			}
		}
	}

	return cache.NewKey(compilerDigest, []byte(driver), driverDigest, []byte(timeout.String())), nil
}

// writeReport renders the report: JSON on stdout, or mismatch lines on the
// diagnostic stream.
func writeReport(stdout, stderr io.Writer, rep *report.Report, useColor bool) error {
	if jsonFlag {
		return report.WriteJSON(stdout, rep)
	}
	w := report.NewWriter(stderr, useColor, verbose)
	if err := w.Mismatches(rep); err != nil {
		return err
	}
	if summaryFlag || verbose {
		return w.Summary(rep)
	}
	return nil
}

// recordRun stores the run in the history database. Failures are reported in
// verbose mode only and never change the exit status.
func recordRun(cfg config.MergedConfig, rep *report.Report, logger *report.Logger) {
	db, err := state.Open(cfg.HistoryPath)
	if err != nil {
		logger.Debugf("history not recorded: %v", err)
		return
	}
	defer db.Close()

	id, err := state.GenerateID()
	if err != nil {
		logger.Debugf("history not recorded: %v", err)
		return
	}

	run := state.RunFromReport(id, rep)
	run.Compiler = cfg.Compiler
	run.FixtureRoot = cfg.FixtureRoot
	if rev, err := gitutil.Describe(compilerDir(cfg.Compiler)); err == nil {
		logger.Debugf("compiler revision %s", rev)
		run.GitCommit = rev.Commit
		run.GitBranch = rev.Branch
	}

	if err := db.CreateRun(run); err != nil {
		logger.Debugf("history not recorded: %v", err)
		return
	}
	logger.Debugf("recorded run %s", state.ShortID(id))
}

// compilerDir returns the directory holding the compiler binary.
func compilerDir(compiler string) string {
	if path, err := toolchain.LookPath(compiler); err == nil {
		compiler = path
	}
	return filepath.Dir(compiler)
}

// colorEnabled resolves a color mode against the stream it applies to.
func colorEnabled(mode string, w io.Writer) bool {
	switch mode {
	case "on":
		return true
	case "off":
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
