// Package runner implements the conformance runner: it resolves a stage,
// enumerates that stage's fixtures, runs the compiler on each and collects
// every fixture whose outcome contradicts its expected kind.
package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Quidge/conform/internal/cache"
	"github.com/Quidge/conform/internal/fixture"
	"github.com/Quidge/conform/internal/report"
	"github.com/Quidge/conform/internal/stage"
	"github.com/Quidge/conform/internal/toolchain"
)

// Compiler is the compiler under test.
type Compiler interface {
	Check(ctx context.Context, mode, input string) (toolchain.Outcome, error)
	Codegen(ctx context.Context, input, output string) (toolchain.Outcome, error)
}

// CompileFailurePolicy decides what happens to bad* fixtures in the compile stage.
type CompileFailurePolicy string

const (
	// PolicySkip leaves bad* compile fixtures unevaluated.
	PolicySkip CompileFailurePolicy = "skip"

	// PolicyRejectCodegen expects codegen to reject bad* compile fixtures.
	PolicyRejectCodegen CompileFailurePolicy = "reject-codegen"
)

// ParsePolicy validates a policy name. Empty means PolicySkip.
func ParsePolicy(s string) (CompileFailurePolicy, error) {
	switch CompileFailurePolicy(s) {
	case "", PolicySkip:
		return PolicySkip, nil
	case PolicyRejectCodegen:
		return PolicyRejectCodegen, nil
	}
	return "", fmt.Errorf("invalid compile failure policy %q (expected %s or %s)", s, PolicySkip, PolicyRejectCodegen)
}

// Default suffixes and extension.
const (
	DefaultFixtureExt       = ".cminor"
	DefaultArtifactSuffix   = ".s"
	DefaultExecutableSuffix = ".out"
)

// Runner runs one stage per call to Run. A Runner holds no state between runs.
type Runner struct {
	// Root is the directory containing the test_<stage> directories.
	Root string

	// FixtureExt is the fixture file extension, including the dot.
	FixtureExt string

	// ArtifactSuffix is appended to a fixture path to name codegen output.
	ArtifactSuffix string

	// ExecutableSuffix is appended to a fixture path to name the linked program.
	ExecutableSuffix string

	// SupportObject is linked with every compile-stage artifact. Relative
	// paths are resolved against Root.
	SupportObject string

	Compiler Compiler
	Linker   toolchain.Linker

	// Jobs bounds concurrent fixture evaluations. 1 runs sequentially;
	// 0 or less uses GOMAXPROCS.
	Jobs int

	// CompileFailures selects how bad* compile fixtures are treated.
	CompileFailures CompileFailurePolicy

	// Cache, when non-nil, stores verdicts keyed by CacheIdentity and the
	// fixture's contents.
	Cache *cache.Cache

	// CacheIdentity identifies the toolchain (compiler binary, linker) for
	// cache keys. Required when Cache is set.
	CacheIdentity []byte

	Logger *report.Logger
}

// verdict is the evaluation result for one fixture.
type verdict struct {
	skipped  bool
	mismatch *report.Mismatch
}

// Run checks every fixture of the named stage. An unknown stage yields a
// *stage.ConfigurationError before anything is read from disk; a fixture
// directory that cannot be listed yields a *fixture.EnumerationError.
// Per-fixture problems, including tools that fail to start, never abort the
// run: they are recorded in the report.
func (r *Runner) Run(ctx context.Context, stageName string) (*report.Report, error) {
	s, err := stage.FromName(stageName)
	if err != nil {
		return nil, err
	}
	spec, err := stage.Lookup(s)
	if err != nil {
		return nil, err
	}
	if r.Compiler == nil {
		return nil, errors.New("runner has no compiler")
	}
	if spec.SecondaryBuild && r.Linker == nil {
		return nil, fmt.Errorf("stage %s requires a linker", s)
	}

	rep := report.New(s)

	dir := filepath.Join(r.Root, spec.Dir)
	fixtures, err := fixture.Discover(dir, r.fixtureExt())
	if err != nil {
		return nil, err
	}
	r.Logger.Debugf("%s: %d fixtures in %s", s, len(fixtures), dir)

	verdicts := make([]verdict, len(fixtures))
	if len(fixtures) > 0 {
		jobs := r.Jobs
		if jobs <= 0 {
			jobs = runtime.GOMAXPROCS(0)
		}

		// Each goroutine writes only its own index.
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(min(jobs, len(fixtures)))
		for i, f := range fixtures {
			g.Go(func() error {
				v, err := r.evaluate(gctx, spec, f)
				if err != nil {
					return err
				}
				verdicts[i] = v
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	for _, v := range verdicts {
		if v.skipped {
			rep.Skipped++
			continue
		}
		rep.Evaluated++
		if v.mismatch != nil {
			rep.Add(*v.mismatch)
		}
	}
	rep.Sort()
	rep.Duration = time.Since(rep.StartedAt)
	return rep, nil
}

// evaluate returns an error only when ctx is done.
func (r *Runner) evaluate(ctx context.Context, spec stage.Spec, f fixture.Fixture) (verdict, error) {
	if err := ctx.Err(); err != nil {
		return verdict{}, err
	}

	var key cache.Key
	useCache := r.Cache != nil
	if useCache {
		k, err := r.cacheKey(spec, f)
		if err != nil {
			r.Logger.Debugf("%s: cache disabled for fixture: %v", f.Path, err)
			useCache = false
		} else {
			key = k
			var entry cache.Entry
			if ok, err := r.Cache.Get(key, &entry); err != nil {
				r.Logger.Warnf("%v", err)
			} else if ok {
				r.Logger.Debugf("%s: cached", f.Path)
				return verdictFromEntry(f, &entry), nil
			}
		}
	}

	start := time.Now()
	var (
		v   verdict
		err error
	)
	if spec.SecondaryBuild {
		v, err = r.evaluateCompile(ctx, spec, f)
	} else {
		v, err = r.evaluateCheck(ctx, spec, f)
	}
	if err != nil {
		return verdict{}, err
	}
	r.Logger.Debugf("%s: %s (%s)", f.Path, describe(v), time.Since(start).Round(time.Millisecond))

	if useCache && cacheable(v) {
		if err := r.Cache.Put(key, entryFromVerdict(v)); err != nil {
			r.Logger.Warnf("%v", err)
		}
	}
	return v, nil
}

// evaluateCheck handles lex, parse and typecheck: only the exit status matters.
func (r *Runner) evaluateCheck(ctx context.Context, spec stage.Spec, f fixture.Fixture) (verdict, error) {
	out, err := r.Compiler.Check(ctx, spec.Mode, f.Path)
	if err != nil {
		return toolFailure(ctx, f, err)
	}
	return judge(f, out), nil
}

// evaluateCompile runs codegen and, for fixtures expected to succeed, the
// secondary build.
func (r *Runner) evaluateCompile(ctx context.Context, spec stage.Spec, f fixture.Fixture) (verdict, error) {
	if f.Kind == fixture.ExpectFailure && r.compileFailures() == PolicySkip {
		return verdict{skipped: true}, nil
	}

	asm := f.ArtifactPath(r.artifactSuffix())
	out, err := r.Compiler.Codegen(ctx, f.Path, asm)
	if err != nil {
		return toolFailure(ctx, f, err)
	}
	if f.Kind == fixture.ExpectFailure || !out.Success() {
		return judge(f, out), nil
	}

	exe := f.ExecutablePath(r.executableSuffix())
	linkOut, err := r.Linker.Link(ctx, asm, r.supportObject(), exe)
	if err != nil {
		return toolFailure(ctx, f, err)
	}
	if linkOut.TimedOut {
		return timedOut(f, linkOut), nil
	}
	if !linkOut.Success() {
		return verdict{mismatch: &report.Mismatch{
			Fixture:  f.Path,
			Expected: f.Kind,
			Actual:   report.ActualFail,
			Reason:   report.ReasonAssemblyFailed,
			Detail:   linkOut.Stderr,
		}}, nil
	}
	return verdict{}, nil
}

// judge projects a compiler outcome through the expectation table.
func judge(f fixture.Fixture, out toolchain.Outcome) verdict {
	if out.TimedOut {
		return timedOut(f, out)
	}
	switch {
	case f.Kind == fixture.ExpectSuccess && !out.Success():
		return verdict{mismatch: &report.Mismatch{
			Fixture:  f.Path,
			Expected: f.Kind,
			Actual:   report.ActualFail,
			Reason:   report.ReasonIncorrectlyFailed,
			Detail:   out.Stderr,
		}}
	case f.Kind == fixture.ExpectFailure && out.Success():
		return verdict{mismatch: &report.Mismatch{
			Fixture:  f.Path,
			Expected: f.Kind,
			Actual:   report.ActualPass,
			Reason:   report.ReasonIncorrectlyPassed,
		}}
	}
	return verdict{}
}

func timedOut(f fixture.Fixture, out toolchain.Outcome) verdict {
	return verdict{mismatch: &report.Mismatch{
		Fixture:  f.Path,
		Expected: f.Kind,
		Actual:   report.ActualError,
		Reason:   report.ReasonTimedOut,
		Detail:   fmt.Sprintf("killed after %s", out.Duration.Round(time.Millisecond)),
	}}
}

// toolFailure converts an invocation error into a verdict. Context errors
// are passed through so the run stops.
func toolFailure(ctx context.Context, f fixture.Fixture, err error) (verdict, error) {
	if ctx.Err() != nil {
		return verdict{}, ctx.Err()
	}
	return verdict{mismatch: &report.Mismatch{
		Fixture:  f.Path,
		Expected: f.Kind,
		Actual:   report.ActualError,
		Reason:   report.ReasonToolUnavailable,
		Detail:   err.Error(),
	}}, nil
}

func describe(v verdict) string {
	switch {
	case v.skipped:
		return "skipped"
	case v.mismatch != nil:
		return string(v.mismatch.Reason)
	}
	return "ok"
}

func (r *Runner) cacheKey(spec stage.Spec, f fixture.Fixture) (cache.Key, error) {
	if len(r.CacheIdentity) == 0 {
		return cache.Key{}, errors.New("no toolchain identity")
	}
	fixtureDigest, err := cache.FileDigest(f.Path)
	if err != nil {
		return cache.Key{}, err
	}
	parts := [][]byte{
		[]byte(spec.Stage),
		[]byte(spec.Mode),
		r.CacheIdentity,
		[]byte(f.Kind),
		fixtureDigest,
	}
	if spec.SecondaryBuild {
		// A missing support object still yields a key; the link fails either way.
		supportDigest, _ := cache.FileDigest(r.supportObject())
		parts = append(parts, supportDigest, []byte(r.compileFailures()))
	}
	return cache.NewKey(parts...), nil
}

// cacheable reports whether a verdict depends only on the fixture and the
// toolchain. Timeouts and launch failures depend on the machine.
func cacheable(v verdict) bool {
	if v.skipped {
		return false
	}
	if v.mismatch == nil {
		return true
	}
	switch v.mismatch.Reason {
	case report.ReasonToolUnavailable, report.ReasonTimedOut:
		return false
	}
	return true
}

func entryFromVerdict(v verdict) *cache.Entry {
	if v.mismatch == nil {
		return &cache.Entry{}
	}
	return &cache.Entry{
		Mismatch: true,
		Actual:   string(v.mismatch.Actual),
		Reason:   string(v.mismatch.Reason),
		Detail:   v.mismatch.Detail,
	}
}

func verdictFromEntry(f fixture.Fixture, e *cache.Entry) verdict {
	if !e.Mismatch {
		return verdict{}
	}
	return verdict{mismatch: &report.Mismatch{
		Fixture:  f.Path,
		Expected: f.Kind,
		Actual:   report.Actual(e.Actual),
		Reason:   report.Reason(e.Reason),
		Detail:   e.Detail,
	}}
}

func (r *Runner) fixtureExt() string {
	if r.FixtureExt == "" {
		return DefaultFixtureExt
	}
	return r.FixtureExt
}

func (r *Runner) artifactSuffix() string {
	if r.ArtifactSuffix == "" {
		return DefaultArtifactSuffix
	}
	return r.ArtifactSuffix
}

func (r *Runner) executableSuffix() string {
	if r.ExecutableSuffix == "" {
		return DefaultExecutableSuffix
	}
	return r.ExecutableSuffix
}

func (r *Runner) supportObject() string {
	if r.SupportObject == "" || filepath.IsAbs(r.SupportObject) {
		return r.SupportObject
	}
	return filepath.Join(r.Root, r.SupportObject)
}

func (r *Runner) compileFailures() CompileFailurePolicy {
	if r.CompileFailures == "" {
		return PolicySkip
	}
	return r.CompileFailures
}
