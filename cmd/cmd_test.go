package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Quidge/conform/internal/config"
	"github.com/Quidge/conform/internal/report"
	"github.com/Quidge/conform/internal/state"
	"github.com/Quidge/conform/internal/toolchain"
)

// fakeCompiler accepts every file unless it contains the word "reject", and
// writes a placeholder artifact in codegen mode.
const fakeCompiler = `#!/bin/sh
if grep -q reject "$2"; then
	echo "error: rejected" >&2
	exit 1
fi
if [ "$1" = "-codegen" ]; then
	echo "	ret" > "$3"
fi
exit 0
`

// resetFlags restores every command-line variable to its default, since the
// command tree is shared between tests.
func resetFlags(t *testing.T) {
	t.Helper()
	configFlag, colorFlag, verbose = "", "", false
	compilerFlag, rootFlag, timeoutFlag, linkerFlag, policyFlag = "", "", "", "", ""
	jobsFlag = 0
	jsonFlag, summaryFlag, noHistoryFlag, cacheFlag = false, false, false, false
	initCmd.Flags().Set("force", "false")
	initCmd.Flags().Set("minimal", "false")
	configInitCmd.Flags().Set("force", "false")
}

// setupProject creates a fixture tree with a fake compiler, makes it the
// working directory and isolates user config and data directories.
func setupProject(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, ".data"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, ".cache"))
	t.Setenv("NO_COLOR", "1")

	writeFile(t, filepath.Join(dir, "cminor"), fakeCompiler, 0755)
	writeFile(t, filepath.Join(dir, "test_lex", "good_empty.cminor"), "", 0644)
	writeFile(t, filepath.Join(dir, "test_lex", "good_ident.cminor"), "x", 0644)
	writeFile(t, filepath.Join(dir, "test_lex", "bad_char.cminor"), "reject", 0644)
	writeFile(t, filepath.Join(dir, "test_parse", "bad_missing_semicolon.cminor"), "x = 1", 0644)

	t.Chdir(dir)
	resetFlags(t)
	return dir
}

func writeFile(t *testing.T, path, content string, perm os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatal(err)
	}
}

// run executes the command line and returns the exit code and both streams.
func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	resetFlags(t)
	var stdout, stderr bytes.Buffer
	code := execute(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestStageArgument(t *testing.T) {
	setupProject(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing stage", []string{}, "no stage given"},
		{"unknown stage", []string{"optimize"}, `"optimize"`},
		{"too many arguments", []string{"lex", "parse"}, "expected one stage"},
		{"unknown flag", []string{"lex", "--bogus"}, "unknown flag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := run(t, tt.args...)
			if code != report.ExitConfig {
				t.Errorf("exit code = %d, want %d", code, report.ExitConfig)
			}
			if stdout != "" {
				t.Errorf("expected nothing on stdout, got %q", stdout)
			}
			if !strings.Contains(stderr, tt.want) {
				t.Errorf("stderr = %q, want it to contain %q", stderr, tt.want)
			}
			if !strings.Contains(stderr, "usage: conform STAGE") {
				t.Errorf("stderr = %q, want a usage line", stderr)
			}
			if !strings.Contains(stderr, "lex, parse, typecheck, compile") {
				t.Errorf("stderr = %q, want the stage list", stderr)
			}
		})
	}
}

func TestInvalidStageTouchesNothing(t *testing.T) {
	dir := setupProject(t)
	if err := os.Remove(filepath.Join(dir, "cminor")); err != nil {
		t.Fatal(err)
	}

	code, _, _ := run(t, "codegen")
	if code != report.ExitConfig {
		t.Fatalf("exit code = %d, want %d", code, report.ExitConfig)
	}
	if _, err := os.Stat(filepath.Join(dir, ".data")); !os.IsNotExist(err) {
		t.Errorf("history directory created for an invalid stage: %v", err)
	}
}

func TestRunStage(t *testing.T) {
	dir := setupProject(t)

	t.Run("clean run is silent", func(t *testing.T) {
		code, stdout, stderr := run(t, "lex")
		if code != report.ExitOK {
			t.Fatalf("exit code = %d, want 0 (stderr: %s)", code, stderr)
		}
		if stdout != "" || stderr != "" {
			t.Errorf("expected no output, got stdout=%q stderr=%q", stdout, stderr)
		}
	})

	t.Run("mismatch exits 2", func(t *testing.T) {
		writeFile(t, filepath.Join(dir, "test_lex", "good_ident.cminor"), "reject", 0644)
		defer writeFile(t, filepath.Join(dir, "test_lex", "good_ident.cminor"), "x", 0644)

		code, stdout, stderr := run(t, "lex")
		if code != report.ExitMismatch {
			t.Fatalf("exit code = %d, want %d", code, report.ExitMismatch)
		}
		if stdout != "" {
			t.Errorf("expected nothing on stdout, got %q", stdout)
		}
		want := "test_lex/good_ident.cminor test incorrectly failed\n"
		if stderr != want {
			t.Errorf("stderr = %q, want %q", stderr, want)
		}
	})

	t.Run("incorrectly passed", func(t *testing.T) {
		code, _, stderr := run(t, "parse")
		if code != report.ExitMismatch {
			t.Fatalf("exit code = %d, want %d", code, report.ExitMismatch)
		}
		if !strings.Contains(stderr, "test_parse/bad_missing_semicolon.cminor test incorrectly passed") {
			t.Errorf("stderr = %q", stderr)
		}
	})

	t.Run("summary", func(t *testing.T) {
		code, _, stderr := run(t, "lex", "--summary")
		if code != report.ExitOK {
			t.Fatalf("exit code = %d, want 0", code)
		}
		if !strings.Contains(stderr, "lex: 3 fixtures") {
			t.Errorf("stderr = %q, want a summary line", stderr)
		}
	})

	t.Run("json report", func(t *testing.T) {
		code, stdout, stderr := run(t, "parse", "--json", "-j", "4")
		if code != report.ExitMismatch {
			t.Fatalf("exit code = %d, want %d", code, report.ExitMismatch)
		}
		if stderr != "" {
			t.Errorf("expected nothing on stderr, got %q", stderr)
		}

		var rep report.Report
		if err := json.Unmarshal([]byte(stdout), &rep); err != nil {
			t.Fatalf("invalid JSON %q: %v", stdout, err)
		}
		if rep.Stage != "parse" || rep.Evaluated != 1 || len(rep.Mismatches) != 1 {
			t.Errorf("unexpected report %+v", rep)
		}
		if rep.Mismatches[0].Reason != report.ReasonIncorrectlyPassed {
			t.Errorf("reason = %q", rep.Mismatches[0].Reason)
		}
	})

	t.Run("missing compiler exits 3", func(t *testing.T) {
		code, _, stderr := run(t, "lex", "--compiler", "./no-such-cminor")
		if code != report.ExitToolError {
			t.Fatalf("exit code = %d, want %d", code, report.ExitToolError)
		}
		if strings.Count(stderr, "tool unavailable") != 3 {
			t.Errorf("stderr = %q, want one tool error per fixture", stderr)
		}
	})

	t.Run("missing stage directory", func(t *testing.T) {
		code, _, stderr := run(t, "typecheck")
		if code != report.ExitConfig {
			t.Fatalf("exit code = %d, want %d", code, report.ExitConfig)
		}
		if !strings.Contains(stderr, "test_typecheck") {
			t.Errorf("stderr = %q, want the missing directory", stderr)
		}
	})

	t.Run("invalid timeout", func(t *testing.T) {
		code, _, stderr := run(t, "lex", "--timeout", "soon")
		if code != report.ExitConfig {
			t.Fatalf("exit code = %d, want %d", code, report.ExitConfig)
		}
		if !strings.Contains(stderr, "invalid timeout") {
			t.Errorf("stderr = %q", stderr)
		}
	})

	t.Run("unknown linker", func(t *testing.T) {
		code, _, stderr := run(t, "lex", "--linker", "tcc")
		if code != report.ExitConfig {
			t.Fatalf("exit code = %d, want %d", code, report.ExitConfig)
		}
		if !strings.Contains(stderr, "unknown linker type") {
			t.Errorf("stderr = %q", stderr)
		}
	})
}

func TestRunRecordsHistory(t *testing.T) {
	dir := setupProject(t)

	if code, _, _ := run(t, "lex"); code != report.ExitOK {
		t.Fatalf("lex exit code = %d", code)
	}
	if code, _, _ := run(t, "parse"); code != report.ExitMismatch {
		t.Fatalf("parse exit code = %d", code)
	}
	if code, _, _ := run(t, "lex", "--no-history"); code != report.ExitOK {
		t.Fatalf("lex --no-history exit code = %d", code)
	}

	db, err := state.Open(filepath.Join(dir, ".data", "conform", "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	runs, err := db.ListRuns(state.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("recorded %d runs, want 2", len(runs))
	}
	parseRun, err := db.GetRun(runs[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if parseRun.Stage != "parse" || parseRun.ExitCode != report.ExitMismatch || len(parseRun.Details) != 1 {
		t.Errorf("unexpected parse run %+v", parseRun)
	}

	t.Run("history list", func(t *testing.T) {
		code, stdout, stderr := run(t, "history", "list")
		if code != report.ExitOK {
			t.Fatalf("exit code = %d (stderr: %s)", code, stderr)
		}
		if !strings.Contains(stdout, state.ShortID(parseRun.ID)) || !strings.Contains(stdout, "mismatch") {
			t.Errorf("stdout = %q", stdout)
		}
	})

	t.Run("history show by prefix", func(t *testing.T) {
		code, stdout, stderr := run(t, "history", "show", parseRun.ID[:10])
		if code != report.ExitOK {
			t.Fatalf("exit code = %d (stderr: %s)", code, stderr)
		}
		if !strings.Contains(stdout, "test_parse/bad_missing_semicolon.cminor test incorrectly passed") {
			t.Errorf("stdout = %q", stdout)
		}
	})

	t.Run("history show unknown", func(t *testing.T) {
		code, _, stderr := run(t, "history", "show", "ffffffff")
		if code != report.ExitConfig {
			t.Fatalf("exit code = %d", code)
		}
		if !strings.Contains(stderr, "not found") {
			t.Errorf("stderr = %q", stderr)
		}
	})

	t.Run("history prune", func(t *testing.T) {
		code, stdout, _ := run(t, "history", "prune", "--all")
		if code != report.ExitOK {
			t.Fatalf("exit code = %d", code)
		}
		if !strings.Contains(stdout, "Deleted 2 runs") {
			t.Errorf("stdout = %q", stdout)
		}
	})
}

func TestRunWithCache(t *testing.T) {
	dir := setupProject(t)

	if code, _, stderr := run(t, "lex", "--cache", "--no-history"); code != report.ExitOK {
		t.Fatalf("first run exit code = %d (stderr: %s)", code, stderr)
	}

	code, stdout, _ := run(t, "cache", "info")
	if code != report.ExitOK {
		t.Fatalf("cache info exit code = %d", code)
	}
	if !strings.Contains(stdout, filepath.Join(dir, ".cache", "conform")) || !strings.Contains(stdout, "Entries:   3") {
		t.Errorf("cache info = %q", stdout)
	}

	// Verbose mode reports cache hits.
	code, _, stderr := run(t, "lex", "--cache", "--no-history", "-v")
	if code != report.ExitOK {
		t.Fatalf("second run exit code = %d", code)
	}
	if strings.Count(stderr, ": cached") != 3 {
		t.Errorf("expected 3 cache hits, stderr = %q", stderr)
	}

	code, stdout, _ = run(t, "cache", "clear")
	if code != report.ExitOK {
		t.Fatalf("cache clear exit code = %d", code)
	}
	if !strings.Contains(stdout, "Removed 3 entries") {
		t.Errorf("cache clear = %q", stdout)
	}
}

func TestToolchainIdentity(t *testing.T) {
	dir := t.TempDir()
	compiler := filepath.Join(dir, "cminor")
	driver := filepath.Join(dir, "cc")
	writeFile(t, compiler, fakeCompiler, 0755)
	writeFile(t, driver, "#!/bin/sh\nexit 0\n", 0755)
	linker := &toolchain.DriverLinker{Driver: driver}

	base, err := toolchainIdentity(compiler, linker, time.Second)
	if err != nil {
		t.Fatalf("toolchainIdentity() failed: %v", err)
	}
	again, err := toolchainIdentity(compiler, linker, time.Second)
	if err != nil {
		t.Fatalf("toolchainIdentity() failed: %v", err)
	}
	if base != again {
		t.Error("identity is not stable")
	}

	if other, _ := toolchainIdentity(compiler, linker, 2*time.Second); other == base {
		t.Error("timeout change kept the same identity")
	}

	// Upgrading the driver in place changes the identity.
	writeFile(t, driver, "#!/bin/sh\n# v2\nexit 0\n", 0755)
	upgraded, err := toolchainIdentity(compiler, linker, time.Second)
	if err != nil {
		t.Fatalf("toolchainIdentity() failed: %v", err)
	}
	if upgraded == base {
		t.Error("linker driver change kept the same identity")
	}

	// An unresolvable driver still yields an identity.
	missing := &toolchain.DriverLinker{Driver: filepath.Join(dir, "no-such-cc")}
	if _, err := toolchainIdentity(compiler, missing, time.Second); err != nil {
		t.Errorf("toolchainIdentity() with missing driver failed: %v", err)
	}

	if _, err := toolchainIdentity(filepath.Join(dir, "no-such-cminor"), linker, time.Second); err == nil {
		t.Error("expected error for missing compiler")
	}
}

func TestStagesCommand(t *testing.T) {
	setupProject(t)

	code, stdout, _ := run(t, "stages")
	if code != report.ExitOK {
		t.Fatalf("exit code = %d", code)
	}
	for _, want := range []string{"lex", "-scan", "test_parse", "-typecheck", "-codegen", "link"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stages output missing %q:\n%s", want, stdout)
		}
	}
}

func TestInitCommand(t *testing.T) {
	dir := setupProject(t)

	code, stdout, _ := run(t, "init")
	if code != report.ExitOK {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout, "Created .conform.yaml") {
		t.Errorf("stdout = %q", stdout)
	}
	if !config.ProjectConfigExists(dir) {
		t.Fatal("expected .conform.yaml to be created")
	}

	code, _, stderr := run(t, "init")
	if code != report.ExitConfig {
		t.Errorf("second init exit code = %d, want %d", code, report.ExitConfig)
	}
	if !strings.Contains(stderr, "already exists") {
		t.Errorf("stderr = %q", stderr)
	}

	// The generated template must drive a normal run.
	if code, _, stderr := run(t, "lex", "--no-history"); code != report.ExitOK {
		t.Errorf("lex with template config exit code = %d (stderr: %s)", code, stderr)
	}
}

func TestConfigShow(t *testing.T) {
	dir := setupProject(t)
	writeFile(t, filepath.Join(dir, config.ProjectConfigFilename), "version: 1\njobs: 3\ntimeout: 5s\n", 0644)

	code, stdout, stderr := run(t, "config", "show")
	if code != report.ExitOK {
		t.Fatalf("exit code = %d (stderr: %s)", code, stderr)
	}
	for _, want := range []string{"compiler: ./cminor", "jobs: 3", "timeout: 5s", "linker_type: cc"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("config show missing %q:\n%s", want, stdout)
		}
	}
}

func TestConfigPathAndInit(t *testing.T) {
	dir := setupProject(t)
	globalPath := filepath.Join(dir, ".config", "conform", "config.yaml")

	code, stdout, _ := run(t, "config", "path")
	if code != report.ExitOK {
		t.Fatalf("config path exit code = %d", code)
	}
	if !strings.Contains(stdout, globalPath+" (not found)") {
		t.Errorf("expected missing global config, stdout = %q", stdout)
	}
	if !strings.Contains(stdout, "project: (none") {
		t.Errorf("expected no project config, stdout = %q", stdout)
	}

	if code, _, stderr := run(t, "config", "init"); code != report.ExitOK {
		t.Fatalf("config init exit code = %d (stderr: %s)", code, stderr)
	}
	code, _, stderr := run(t, "config", "init")
	if code != report.ExitConfig || !strings.Contains(stderr, "already exists") {
		t.Errorf("second config init = %d, stderr = %q", code, stderr)
	}
	if code, _, _ := run(t, "config", "init", "--force"); code != report.ExitOK {
		t.Errorf("config init --force exit code = %d", code)
	}

	_, stdout, _ = run(t, "config", "path")
	if strings.Contains(stdout, "(not found)") {
		t.Errorf("expected global config to exist, stdout = %q", stdout)
	}
}

func TestDoctor(t *testing.T) {
	dir := setupProject(t)

	t.Run("missing support object", func(t *testing.T) {
		code, stdout, _ := run(t, "doctor")
		if !strings.Contains(stdout, "support object library.o not found") {
			t.Errorf("stdout = %q", stdout)
		}
		if !strings.Contains(stdout, "lex: 3 fixtures (2 good, 1 bad)") {
			t.Errorf("stdout = %q", stdout)
		}
		if code == report.ExitOK {
			t.Error("expected a non-zero exit code")
		}
	})

	t.Run("missing compiler", func(t *testing.T) {
		writeFile(t, filepath.Join(dir, "library.o"), "", 0644)
		code, stdout, _ := run(t, "doctor", "--config", writeConfig(t, dir, "compiler: ./gone\n"))
		if code != report.ExitToolError {
			t.Errorf("exit code = %d, want %d", code, report.ExitToolError)
		}
		if !strings.Contains(stdout, "FAIL compiler ./gone") {
			t.Errorf("stdout = %q", stdout)
		}
	})

	t.Run("compiler in a git checkout", func(t *testing.T) {
		if _, err := exec.LookPath("git"); err != nil {
			t.Skip("git not available")
		}
		src := filepath.Join(dir, "src")
		writeFile(t, filepath.Join(src, "cminor"), fakeCompiler, 0755)
		for _, args := range [][]string{
			{"init"},
			{"config", "user.email", "test@example.com"},
			{"config", "user.name", "Test User"},
			{"add", "cminor"},
			{"commit", "-m", "initial"},
		} {
			git := exec.Command("git", args...)
			git.Dir = src
			if out, err := git.CombinedOutput(); err != nil {
				t.Fatalf("git %v failed: %v\n%s", args, err, out)
			}
		}
		srcResolved, err := filepath.EvalSymlinks(src)
		if err != nil {
			t.Fatal(err)
		}

		_, stdout, _ := run(t, "doctor", "--config", writeConfig(t, dir, "compiler: ./src/cminor\n"))
		if !strings.Contains(stdout, " in "+srcResolved+")") {
			t.Errorf("expected checkout %s in compiler line, stdout = %q", srcResolved, stdout)
		}
	})
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "alt.yaml")
	writeFile(t, path, "version: 1\n"+content, 0644)
	return path
}

func TestColorEnabled(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	var buf bytes.Buffer

	tests := []struct {
		mode string
		want bool
	}{
		{"on", true},
		{"off", false},
		{"auto", false},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			if got := colorEnabled(tt.mode, &buf); got != tt.want {
				t.Errorf("colorEnabled(%q) = %v, want %v", tt.mode, got, tt.want)
			}
		})
	}
}
