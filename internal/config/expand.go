package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/Quidge/conform/internal/pathutil"
)

// envVarPattern matches ${VAR} or ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ExpandPath expands ${VAR} patterns and a leading ~ in a path.
func ExpandPath(path string) (string, error) {
	return pathutil.ExpandTilde(ExpandEnvVars(path))
}

// ExpandEnvVars expands ${VAR} patterns in a string using environment variables.
// If a variable is not set, it expands to an empty string.
func ExpandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR}
		varName := match[2 : len(match)-1]

		// Handle default values: ${VAR:-default}
		if idx := strings.Index(varName, ":-"); idx != -1 {
			name := varName[:idx]
			defaultVal := varName[idx+2:]
			if val, ok := os.LookupEnv(name); ok {
				return val
			}
			return defaultVal
		}

		return os.Getenv(varName)
	})
}

// isCommandName reports whether s names a command to be found on $PATH
// rather than a file path.
func isCommandName(s string) bool {
	return !strings.ContainsRune(s, '/') && !strings.ContainsRune(s, os.PathSeparator)
}
