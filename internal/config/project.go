package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProjectConfigFilename is the name of the project configuration file.
const ProjectConfigFilename = ".conform.yaml"

// FindProjectConfig searches for a .conform.yaml file starting from the given
// directory and walking up to parent directories until it finds one or reaches
// the filesystem root. Returns "" if none is found.
func FindProjectConfig(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		configPath := filepath.Join(dir, ProjectConfigFilename)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("failed to stat %s: %w", configPath, err)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return "", nil
		}
		dir = parent
	}
}

// LoadProjectConfig loads the project configuration from configPath.
// If the file doesn't exist, returns default configuration (not an error).
// If the file exists but is invalid YAML, returns an error.
func LoadProjectConfig(configPath string) (ProjectConfig, error) {
	if configPath == "" {
		return DefaultProjectConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultProjectConfig(), nil
		}
		return ProjectConfig{}, fmt.Errorf("failed to read project config: %w", err)
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ProjectConfig{}, fmt.Errorf("invalid YAML in %s: %w", configPath, err)
	}

	return applyProjectDefaults(cfg), nil
}

// applyProjectDefaults fills in missing fields with default values.
func applyProjectDefaults(cfg ProjectConfig) ProjectConfig {
	defaults := DefaultProjectConfig()

	if cfg.Version == 0 {
		cfg.Version = defaults.Version
	}
	if cfg.Compiler == "" {
		cfg.Compiler = defaults.Compiler
	}
	if cfg.FixtureRoot == "" {
		cfg.FixtureRoot = defaults.FixtureRoot
	}
	if cfg.FixtureExt == "" {
		cfg.FixtureExt = defaults.FixtureExt
	}
	if cfg.ArtifactSuffix == "" {
		cfg.ArtifactSuffix = defaults.ArtifactSuffix
	}
	if cfg.ExecutableSuffix == "" {
		cfg.ExecutableSuffix = defaults.ExecutableSuffix
	}
	if cfg.SupportObject == "" {
		cfg.SupportObject = defaults.SupportObject
	}
	if cfg.Linker.Type == "" {
		cfg.Linker.Type = defaults.Linker.Type
	}
	if cfg.Timeout == "" {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.Jobs == 0 {
		cfg.Jobs = defaults.Jobs
	}
	if cfg.CompileFailurePolicy == "" {
		cfg.CompileFailurePolicy = defaults.CompileFailurePolicy
	}

	return cfg
}

// ProjectConfigExists checks if a .conform.yaml file exists in the given directory.
func ProjectConfigExists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ProjectConfigFilename))
	return err == nil
}
