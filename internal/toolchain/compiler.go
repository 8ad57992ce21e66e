package toolchain

import (
	"context"
	"time"
)

// CodegenMode is the compiler flag that emits assembly.
const CodegenMode = "codegen"

// Compiler invokes the compiler under test using its command-line contract:
//
//	<path> -<mode> <input> [<output>]
type Compiler struct {
	// Path is the compiler executable.
	Path string

	// Timeout limits each invocation. Zero means no limit.
	Timeout time.Duration
}

// NewCompiler returns a Compiler for path.
func NewCompiler(path string, timeout time.Duration) *Compiler {
	return &Compiler{Path: path, Timeout: timeout}
}

// Check runs the compiler in a checking mode (scan, print, typecheck).
func (c *Compiler) Check(ctx context.Context, mode, input string) (Outcome, error) {
	return Exec(ctx, c.Timeout, c.Path, "-"+mode, input)
}

// Codegen runs the compiler in codegen mode, writing assembly to output.
func (c *Compiler) Codegen(ctx context.Context, input, output string) (Outcome, error) {
	return Exec(ctx, c.Timeout, c.Path, "-"+CodegenMode, input, output)
}
