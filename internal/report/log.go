package report

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Logger writes operational messages (not mismatches) to the diagnostic
// stream. Debugf output only appears in verbose mode. A nil Logger discards
// everything. Safe for concurrent use.
type Logger struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
	warn    *color.Color
}

// NewLogger returns a Logger writing to out.
func NewLogger(out io.Writer, useColor, verbose bool) *Logger {
	warn := color.New(color.FgYellow)
	if useColor {
		warn.EnableColor()
	} else {
		warn.DisableColor()
	}
	return &Logger{out: out, verbose: verbose, warn: warn}
}

// Debugf writes a line in verbose mode only.
func (l *Logger) Debugf(format string, args ...any) {
	if l == nil || !l.verbose {
		return
	}
	l.write(fmt.Sprintf(format, args...))
}

// Warnf writes a warning line.
func (l *Logger) Warnf(format string, args ...any) {
	if l == nil {
		return
	}
	l.write(l.warn.Sprint("warning: " + fmt.Sprintf(format, args...)))
}

// Verbose reports whether debug output is enabled.
func (l *Logger) Verbose() bool {
	return l != nil && l.verbose
}

func (l *Logger) write(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, strings.TrimRight(line, "\n"))
}
