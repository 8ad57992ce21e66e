package config

import (
	"time"
)

// GlobalConfig represents the per-user configuration loaded from
// ~/.config/conform/config.yaml. It holds settings that apply to every
// project: output color, run history and the verdict cache.
type GlobalConfig struct {
	Version int           `yaml:"version"`
	Color   string        `yaml:"color"`
	History HistoryConfig `yaml:"history"`
	Cache   CacheConfig   `yaml:"cache"`
}

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	Disabled bool   `yaml:"disabled"`
	Path     string `yaml:"path"` // empty means $XDG_DATA_HOME/conform/history.db
}

// CacheConfig controls the on-disk verdict cache.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"` // empty means $XDG_CACHE_HOME/conform
}

// ProjectConfig represents the project configuration loaded from
// .conform.yaml, normally next to the test_<stage> directories.
type ProjectConfig struct {
	Version              int          `yaml:"version"`
	Compiler             string       `yaml:"compiler"`
	FixtureRoot          string       `yaml:"fixture_root"`
	FixtureExt           string       `yaml:"fixture_ext"`
	ArtifactSuffix       string       `yaml:"artifact_suffix"`
	ExecutableSuffix     string       `yaml:"executable_suffix"`
	SupportObject        string       `yaml:"support_object"`
	Linker               LinkerConfig `yaml:"linker"`
	Timeout              string       `yaml:"timeout"`
	Jobs                 int          `yaml:"jobs"`
	CompileFailurePolicy string       `yaml:"compile_failure_policy"`
}

// LinkerConfig selects the native toolchain for the secondary build.
type LinkerConfig struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"` // Optional driver override
}

// MergedConfig represents the final merged configuration after applying
// precedence rules (defaults → global → project → flags). Path fields are
// expanded and resolved.
type MergedConfig struct {
	// ConfigPath is the project file that was loaded, or empty if none.
	ConfigPath string `yaml:"config_path,omitempty"`

	Compiler         string `yaml:"compiler"`
	FixtureRoot      string `yaml:"fixture_root"`
	FixtureExt       string `yaml:"fixture_ext"`
	ArtifactSuffix   string `yaml:"artifact_suffix"`
	ExecutableSuffix string `yaml:"executable_suffix"`
	SupportObject    string `yaml:"support_object"`

	LinkerType string `yaml:"linker_type"`
	LinkerPath string `yaml:"linker_path,omitempty"`

	Timeout              time.Duration `yaml:"timeout"`
	Jobs                 int           `yaml:"jobs"`
	CompileFailurePolicy string        `yaml:"compile_failure_policy"`

	Color          string `yaml:"color"`
	HistoryEnabled bool   `yaml:"history_enabled"`
	HistoryPath    string `yaml:"history_path,omitempty"`
	CacheEnabled   bool   `yaml:"cache_enabled"`
	CacheDir       string `yaml:"cache_dir,omitempty"`
}

// DefaultTimeout is the per-invocation limit when none is configured.
const DefaultTimeout = 30 * time.Second

// DefaultGlobalConfig returns a GlobalConfig with sensible defaults.
func DefaultGlobalConfig() GlobalConfig {
	return GlobalConfig{
		Version: 1,
		Color:   "auto",
	}
}

// DefaultProjectConfig returns a ProjectConfig with sensible defaults.
// Jobs defaults to 1, matching the sequential reference harness.
func DefaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version:              1,
		Compiler:             "./cminor",
		FixtureRoot:          ".",
		FixtureExt:           ".cminor",
		ArtifactSuffix:       ".s",
		ExecutableSuffix:     ".out",
		SupportObject:        "library.o",
		Linker:               LinkerConfig{Type: "cc"},
		Timeout:              DefaultTimeout.String(),
		Jobs:                 1,
		CompileFailurePolicy: "skip",
	}
}
