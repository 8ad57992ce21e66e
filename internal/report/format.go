package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Writer renders reports to a diagnostic stream.
type Writer struct {
	out     io.Writer
	verbose bool

	mismatch *color.Color
	severe   *color.Color
	ok       *color.Color
	dim      *color.Color
}

// NewWriter returns a Writer for out. When verbose is set, captured compiler
// stderr is printed beneath each mismatch.
func NewWriter(out io.Writer, useColor, verbose bool) *Writer {
	w := &Writer{
		out:      out,
		verbose:  verbose,
		mismatch: color.New(color.FgYellow),
		severe:   color.New(color.FgRed, color.Bold),
		ok:       color.New(color.FgGreen),
		dim:      color.New(color.Faint),
	}
	for _, c := range []*color.Color{w.mismatch, w.severe, w.ok, w.dim} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return w
}

// Mismatches writes one line per mismatch. Nothing is written for a clean report.
func (w *Writer) Mismatches(r *Report) error {
	for _, m := range r.Mismatches {
		c := w.mismatch
		if m.Reason == ReasonToolUnavailable {
			c = w.severe
		}
		if _, err := fmt.Fprintln(w.out, c.Sprint(m.Line())); err != nil {
			return err
		}
		if w.verbose && m.Detail != "" && m.Reason != ReasonToolUnavailable {
			for _, line := range strings.Split(m.Detail, "\n") {
				if _, err := fmt.Fprintln(w.out, w.dim.Sprint("    "+line)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Summary writes the one-line summary.
func (w *Writer) Summary(r *Report) error {
	c := w.ok
	switch r.ExitCode() {
	case ExitMismatch:
		c = w.mismatch
	case ExitToolError:
		c = w.severe
	}
	_, err := fmt.Fprintln(w.out, c.Sprint(r.Summary()))
	return err
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(out io.Writer, r *Report) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
