package toolchain

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Linker assembles generated assembly together with the prebuilt support
// object into an executable.
type Linker interface {
	Link(ctx context.Context, asm, support, exe string) (Outcome, error)
}

// LinkerConfig contains configuration needed to create a linker.
type LinkerConfig struct {
	// Type is the toolchain type (e.g., "cc", "gcc", "clang").
	Type string

	// Path overrides the driver executable. Defaults to Type.
	Path string

	// Timeout limits each link. Zero means no limit.
	Timeout time.Duration
}

// LinkerFactory creates a linker from configuration.
type LinkerFactory func(cfg LinkerConfig) (Linker, error)

// registry holds the registered linker factories.
var registry = make(map[string]LinkerFactory)

// Register registers a linker factory for the given type.
// This should be called during package init.
func Register(linkerType string, factory LinkerFactory) {
	registry[linkerType] = factory
}

// GetLinker returns a new linker for the given configuration.
// Returns an error if the linker type is not registered.
func GetLinker(cfg LinkerConfig) (Linker, error) {
	factory, ok := registry[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown linker type: %s (registered: %v)", cfg.Type, RegisteredTypes())
	}
	return factory(cfg)
}

// RegisteredTypes returns all registered linker types, sorted.
func RegisteredTypes() []string {
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// DriverLinker links through a C compiler driver:
//
//	<driver> <asm> <support> -o <exe>
type DriverLinker struct {
	Driver  string
	Timeout time.Duration
}

// Link implements Linker.
func (l *DriverLinker) Link(ctx context.Context, asm, support, exe string) (Outcome, error) {
	return Exec(ctx, l.Timeout, l.Driver, asm, support, "-o", exe)
}

func newDriverLinker(cfg LinkerConfig) (Linker, error) {
	driver := cfg.Path
	if driver == "" {
		driver = cfg.Type
	}
	return &DriverLinker{Driver: driver, Timeout: cfg.Timeout}, nil
}

func init() {
	Register("cc", newDriverLinker)
	Register("gcc", newDriverLinker)
	Register("clang", newDriverLinker)
}
