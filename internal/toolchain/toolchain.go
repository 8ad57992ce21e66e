// Package toolchain runs the external programs conform drives: the compiler
// under test and the native driver used to assemble and link its output.
// It uses os/exec directly and reports outcomes as explicit values rather
// than relying on shell exit-status conventions.
package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// stderrTailSize bounds how much stderr is kept per invocation.
const stderrTailSize = 4096

// waitDelay bounds how long Wait blocks on I/O after the process is killed.
const waitDelay = 2 * time.Second

var (
	// ErrToolUnavailable is returned when a tool cannot be started at all.
	ErrToolUnavailable = errors.New("tool could not be started")
)

// InvocationError reports that a process could not be launched. It is never
// used for a process that ran and exited non-zero.
type InvocationError struct {
	Tool string
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrToolUnavailable.Error(), e.Tool, e.Err)
}

func (e *InvocationError) Unwrap() []error {
	return []error{ErrToolUnavailable, e.Err}
}

// Outcome is the result of one process that was started successfully.
type Outcome struct {
	// ExitCode is the process exit status; -1 when killed by a signal or timeout.
	ExitCode int

	// Duration is the wall-clock time of the invocation.
	Duration time.Duration

	// TimedOut is set when the per-invocation timeout killed the process.
	TimedOut bool

	// Stderr holds the tail of the process's standard error.
	Stderr string
}

// Success reports whether the process exited zero within its timeout.
func (o Outcome) Success() bool {
	return !o.TimedOut && o.ExitCode == 0
}

// Exec runs name with args and waits for it to exit. Standard output is
// discarded; standard error is kept for diagnostics only. A zero timeout
// disables the per-invocation limit.
//
// The returned error is non-nil only when the process could not be started
// (*InvocationError) or ctx itself was cancelled. A non-zero exit or a
// timeout is reported through the Outcome.
func Exec(ctx context.Context, timeout time.Duration, name string, args ...string) (Outcome, error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	stderr := &tailBuffer{limit: stderrTailSize}
	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Stdout = nil
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()
	err := cmd.Run()
	out := Outcome{
		Duration: time.Since(start),
		Stderr:   strings.TrimSpace(stderr.String()),
	}
	if err == nil {
		return out, nil
	}

	// Parent cancellation wins over everything else.
	if ctxErr := ctx.Err(); ctxErr != nil {
		out.ExitCode = -1
		return out, ctxErr
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		out.ExitCode = -1
		out.TimedOut = true
		return out, nil
	}

	// The process exited but a child it left behind still holds stderr.
	if errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
		return out, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out, nil
	}

	return out, &InvocationError{Tool: name, Err: err}
}

// LookPath reports where name resolves, following exec.LookPath semantics:
// names containing a path separator are checked directly.
func LookPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", &InvocationError{Tool: name, Err: err}
	}
	return path, nil
}

// tailBuffer keeps only the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	return string(b.buf)
}
