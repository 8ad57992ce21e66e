// Package stage defines the compiler pipeline stages that conform can check
// and the fixed table mapping each stage to a compiler mode and fixture directory.
package stage

import (
	"errors"
	"fmt"
	"strings"
)

// Stage names a phase of the compiler pipeline under test.
type Stage string

const (
	Lex       Stage = "lex"
	Parse     Stage = "parse"
	Typecheck Stage = "typecheck"
	Compile   Stage = "compile"
)

// Spec describes how a stage is exercised.
type Spec struct {
	// Stage is the stage this spec belongs to.
	Stage Stage

	// Mode is the compiler flag without the leading dash (e.g. "scan").
	Mode string

	// Dir is the fixture directory name, relative to the fixture root.
	Dir string

	// SecondaryBuild is set when emitted output must also assemble and link.
	SecondaryBuild bool
}

// order is the display order for All and Names.
var order = []Stage{Lex, Parse, Typecheck, Compile}

// table is built once and never mutated.
var table = map[Stage]Spec{
	Lex:       {Stage: Lex, Mode: "scan", Dir: "test_lex"},
	Parse:     {Stage: Parse, Mode: "print", Dir: "test_parse"},
	Typecheck: {Stage: Typecheck, Mode: "typecheck", Dir: "test_typecheck"},
	Compile:   {Stage: Compile, Mode: "codegen", Dir: "test_compile", SecondaryBuild: true},
}

// ErrInvalidStage is returned when a stage name is missing or unrecognized.
var ErrInvalidStage = errors.New("invalid stage")

// ConfigurationError reports a stage name that does not name a known stage.
// It is raised before any fixture is examined.
type ConfigurationError struct {
	Name string
}

func (e *ConfigurationError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: no stage given (expected one of %s)", ErrInvalidStage.Error(), strings.Join(Names(), ", "))
	}
	return fmt.Sprintf("%s %q (expected one of %s)", ErrInvalidStage.Error(), e.Name, strings.Join(Names(), ", "))
}

func (e *ConfigurationError) Unwrap() error {
	return ErrInvalidStage
}

// FromName resolves a stage name. Matching is exact: "Lex" is not "lex".
func FromName(name string) (Stage, error) {
	s := Stage(name)
	if _, ok := table[s]; !ok {
		return "", &ConfigurationError{Name: name}
	}
	return s, nil
}

// Lookup returns the spec for a stage.
func Lookup(s Stage) (Spec, error) {
	spec, ok := table[s]
	if !ok {
		return Spec{}, &ConfigurationError{Name: string(s)}
	}
	return spec, nil
}

// All returns every stage in pipeline order.
func All() []Stage {
	out := make([]Stage, len(order))
	copy(out, order)
	return out
}

// Names returns the stage names in pipeline order.
func Names() []string {
	names := make([]string, len(order))
	for i, s := range order {
		names[i] = string(s)
	}
	return names
}

// String implements fmt.Stringer.
func (s Stage) String() string {
	return string(s)
}
