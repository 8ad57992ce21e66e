// Package fixture discovers conformance fixtures on disk and classifies them
// by filename prefix.
package fixture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Kind is the expected outcome of running the compiler on a fixture.
type Kind string

const (
	// ExpectSuccess fixtures are named good* and must be accepted.
	ExpectSuccess Kind = "pass"

	// ExpectFailure fixtures are named bad* and must be rejected.
	ExpectFailure Kind = "fail"
)

const (
	goodPrefix = "good"
	badPrefix  = "bad"
)

// Fixture is one test input. Fixtures are never written by conform.
type Fixture struct {
	// Path is the fixture path as discovered (fixture dir joined with name).
	Path string

	// Name is the base file name.
	Name string

	// Kind is derived from the name prefix.
	Kind Kind
}

// ErrEnumeration is returned when a fixture directory cannot be listed.
var ErrEnumeration = errors.New("cannot enumerate fixtures")

// EnumerationError reports a broken fixture installation.
type EnumerationError struct {
	Dir string
	Err error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("%s in %s: %v", ErrEnumeration.Error(), e.Dir, e.Err)
}

func (e *EnumerationError) Unwrap() []error {
	return []error{ErrEnumeration, e.Err}
}

// Classify returns the kind for a file name, or false if the name carries
// neither prefix or does not end in ext.
func Classify(name, ext string) (Kind, bool) {
	if !strings.HasSuffix(name, ext) {
		return "", false
	}
	switch {
	case strings.HasPrefix(name, goodPrefix):
		return ExpectSuccess, true
	case strings.HasPrefix(name, badPrefix):
		return ExpectFailure, true
	}
	return "", false
}

// Discover lists the good* and bad* fixtures with extension ext in dir,
// sorted by path. An empty directory yields no fixtures and no error.
func Discover(dir, ext string) ([]Fixture, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &EnumerationError{Dir: dir, Err: err}
	}

	var fixtures []Fixture
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		kind, ok := Classify(entry.Name(), ext)
		if !ok {
			continue
		}
		fixtures = append(fixtures, Fixture{
			Path: filepath.Join(dir, entry.Name()),
			Name: entry.Name(),
			Kind: kind,
		})
	}

	sort.Slice(fixtures, func(i, j int) bool {
		return fixtures[i].Path < fixtures[j].Path
	})
	return fixtures, nil
}

// ArtifactPath returns the path codegen writes for this fixture.
func (f Fixture) ArtifactPath(suffix string) string {
	return f.Path + suffix
}

// ExecutablePath returns the path the secondary build links to.
func (f Fixture) ExecutablePath(suffix string) string {
	return f.Path + suffix
}

// String returns the fixture path.
func (f Fixture) String() string {
	return f.Path
}
