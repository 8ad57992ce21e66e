package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Quidge/conform/internal/pathutil"
)

// FlagOverrides contains CLI flag values that override configuration.
// Zero values mean "not set".
type FlagOverrides struct {
	ConfigPath           string
	Compiler             string
	Root                 string
	Jobs                 *int
	Timeout              string
	Color                string
	LinkerType           string
	CompileFailurePolicy string
	NoHistory            bool
	Cache                bool
}

// Merge combines global config, project config, and CLI flag overrides
// following the precedence order: defaults → global → project → flags.
//
// Relative paths in the project file are resolved against the directory that
// holds it and then made relative to cwd again when possible, so diagnostics
// show the same short paths the user sees. Flag paths are taken relative to cwd.
func Merge(global GlobalConfig, project ProjectConfig, configPath, cwd string, flags FlagOverrides) (MergedConfig, error) {
	merged := MergedConfig{
		ConfigPath:           configPath,
		FixtureExt:           project.FixtureExt,
		ArtifactSuffix:       project.ArtifactSuffix,
		ExecutableSuffix:     project.ExecutableSuffix,
		LinkerType:           project.Linker.Type,
		Jobs:                 project.Jobs,
		CompileFailurePolicy: project.CompileFailurePolicy,
		Color:                global.Color,
		HistoryEnabled:       !global.History.Disabled,
		CacheEnabled:         global.Cache.Enabled,
	}

	projectDir := cwd
	if configPath != "" {
		projectDir = filepath.Dir(configPath)
	}
	fromProject := func(p string) (string, error) {
		expanded, err := ExpandPath(p)
		if err != nil {
			return "", err
		}
		if configPath == "" || filepath.IsAbs(expanded) {
			return expanded, nil
		}
		return pathutil.Relativize(cwd, pathutil.ResolveRelative(projectDir, expanded)), nil
	}

	var err error

	// Compiler: bare names are looked up on $PATH, anything else is a file.
	merged.Compiler = project.Compiler
	if flags.Compiler != "" {
		if merged.Compiler, err = ExpandPath(flags.Compiler); err != nil {
			return MergedConfig{}, fmt.Errorf("compiler: %w", err)
		}
	} else if !isCommandName(project.Compiler) {
		compiler, err := fromProject(project.Compiler)
		if err != nil {
			return MergedConfig{}, fmt.Errorf("compiler: %w", err)
		}
		merged.Compiler = executablePath(compiler)
	}

	// Fixture root
	if flags.Root != "" {
		merged.FixtureRoot, err = ExpandPath(flags.Root)
	} else {
		merged.FixtureRoot, err = fromProject(project.FixtureRoot)
	}
	if err != nil {
		return MergedConfig{}, fmt.Errorf("fixture_root: %w", err)
	}

	// The support object is relative to the fixture root.
	if merged.SupportObject, err = ExpandPath(project.SupportObject); err != nil {
		return MergedConfig{}, fmt.Errorf("support_object: %w", err)
	}

	// Linker
	if flags.LinkerType != "" {
		merged.LinkerType = flags.LinkerType
	}
	if project.Linker.Path != "" {
		merged.LinkerPath = project.Linker.Path
		if !isCommandName(project.Linker.Path) {
			linkerPath, err := fromProject(project.Linker.Path)
			if err != nil {
				return MergedConfig{}, fmt.Errorf("linker.path: %w", err)
			}
			merged.LinkerPath = executablePath(linkerPath)
		}
	}

	// Timeout
	timeout := project.Timeout
	if flags.Timeout != "" {
		timeout = flags.Timeout
	}
	if merged.Timeout, err = parseTimeout(timeout); err != nil {
		return MergedConfig{}, err
	}

	if flags.Jobs != nil {
		merged.Jobs = *flags.Jobs
	}
	if flags.CompileFailurePolicy != "" {
		merged.CompileFailurePolicy = flags.CompileFailurePolicy
	}

	// Output and bookkeeping
	if flags.Color != "" {
		merged.Color = flags.Color
	}
	if err := validateColor(merged.Color); err != nil {
		return MergedConfig{}, err
	}
	if flags.NoHistory {
		merged.HistoryEnabled = false
	}
	if merged.HistoryPath, err = ExpandPath(global.History.Path); err != nil {
		return MergedConfig{}, fmt.Errorf("history.path: %w", err)
	}
	if flags.Cache {
		merged.CacheEnabled = true
	}
	if merged.CacheDir, err = ExpandPath(global.Cache.Dir); err != nil {
		return MergedConfig{}, fmt.Errorf("cache.dir: %w", err)
	}

	return merged, nil
}

// Load loads global configuration and the project configuration found by
// walking up from cwd (or named by flags.ConfigPath), then merges them with
// the provided flag overrides.
func Load(cwd string, flags FlagOverrides) (MergedConfig, error) {
	global, err := LoadGlobalConfig()
	if err != nil {
		return MergedConfig{}, fmt.Errorf("failed to load global config: %w", err)
	}

	configPath := flags.ConfigPath
	if configPath != "" {
		if !pathutil.ExistsAndIsFile(configPath) {
			return MergedConfig{}, fmt.Errorf("config file not found: %s", configPath)
		}
		if configPath, err = filepath.Abs(configPath); err != nil {
			return MergedConfig{}, fmt.Errorf("failed to resolve config path: %w", err)
		}
	} else {
		configPath, err = FindProjectConfig(cwd)
		if err != nil {
			return MergedConfig{}, fmt.Errorf("failed to find project config: %w", err)
		}
	}

	project, err := LoadProjectConfig(configPath)
	if err != nil {
		return MergedConfig{}, fmt.Errorf("failed to load project config: %w", err)
	}

	return Merge(global, project, configPath, cwd, flags)
}

// LoadFromCwd loads configuration using the current working directory.
func LoadFromCwd(flags FlagOverrides) (MergedConfig, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return MergedConfig{}, fmt.Errorf("failed to get current directory: %w", err)
	}
	return Load(cwd, flags)
}

// executablePath keeps a relative file path from being mistaken for a $PATH
// lookup once it has lost its leading "./".
func executablePath(p string) string {
	if p == "" || !isCommandName(p) {
		return p
	}
	return "./" + p
}

func parseTimeout(s string) (time.Duration, error) {
	if s == "" {
		return DefaultTimeout, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid timeout %q: must not be negative", s)
	}
	return d, nil
}

func validateColor(s string) error {
	switch s {
	case "auto", "on", "off":
		return nil
	}
	return fmt.Errorf("invalid color mode %q (expected auto|on|off)", s)
}
