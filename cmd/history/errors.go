package history

import (
	"fmt"
	"strings"

	"github.com/Quidge/conform/internal/state"
)

// FormatAmbiguousPrefixError formats an AmbiguousPrefixError into a helpful
// error message that lists every matching run.
func FormatAmbiguousPrefixError(err *state.AmbiguousPrefixError) error {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("ambiguous run ID %q: matches %d runs\n", err.Prefix, len(err.Matches)))
	sb.WriteString("\nMatching runs:\n")

	for _, run := range err.Matches {
		sb.WriteString(fmt.Sprintf("  %s  %-9s  %s  (%s)\n",
			state.ShortID(run.ID), run.Stage, run.StartedAt.Local().Format("2006-01-02 15:04"), result(run)))
	}

	sb.WriteString("\nHint: use a longer prefix or run \"conform history list\" to see recent runs")

	return fmt.Errorf("%s", sb.String())
}
