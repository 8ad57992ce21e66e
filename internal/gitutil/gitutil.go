// Package gitutil reads the revision of the repository a compiler was built
// from, so recorded runs can be tied to a commit.
// It uses os/exec to call git commands rather than git libraries.
package gitutil

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var (
	// ErrNotGitRepo is returned when the directory is not inside a git repository.
	ErrNotGitRepo = errors.New("not a git repository")

	// ErrDetachedHead is returned when the repository is in detached HEAD state.
	ErrDetachedHead = errors.New("repository is in detached HEAD state")

	// ErrGitUnavailable is returned when the git binary cannot be found.
	ErrGitUnavailable = errors.New("git executable not found")
)

// Revision identifies the checked-out state of a repository.
type Revision struct {
	Commit string // Full HEAD commit hash
	Branch string // Current branch, empty when HEAD is detached
	Dirty  bool   // Uncommitted changes to tracked files
}

// String renders the revision as "branch@abcdef123456", with a "+dirty"
// suffix for modified work trees.
func (r Revision) String() string {
	commit := r.Commit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	s := commit
	if r.Branch != "" {
		s = r.Branch + "@" + commit
	}
	if r.Dirty {
		s += "+dirty"
	}
	return s
}

// git runs a git subcommand in dir and returns its trimmed stdout.
// A non-zero exit is reported as ErrNotGitRepo.
func git(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	if dir != "" {
		cmd.Dir = dir
	}

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", ErrNotGitRepo
		}
		if errors.Is(err, exec.ErrNotFound) {
			return "", ErrGitUnavailable
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}

	return strings.TrimSpace(string(out)), nil
}

// RepoRoot returns the root directory of the git repository containing dir.
// If dir is empty, the current working directory is used.
func RepoRoot(dir string) (string, error) {
	return git(dir, "rev-parse", "--show-toplevel")
}

// HeadCommit returns the full hash of HEAD.
// If dir is empty, the current working directory is used.
func HeadCommit(dir string) (string, error) {
	return git(dir, "rev-parse", "--verify", "HEAD")
}

// CurrentBranch returns the name of the current branch.
// Returns ErrDetachedHead if the repository is in detached HEAD state.
// If dir is empty, the current working directory is used.
func CurrentBranch(dir string) (string, error) {
	branch, err := git(dir, "symbolic-ref", "--short", "HEAD")
	if errors.Is(err, ErrNotGitRepo) && IsDetachedHead(dir) {
		return "", ErrDetachedHead
	}
	return branch, err
}

// IsDetachedHead returns true if the repository is in detached HEAD state.
// If dir is empty, the current working directory is used.
func IsDetachedHead(dir string) bool {
	if !IsInsideWorkTree(dir) {
		return false
	}
	cmd := exec.Command("git", "symbolic-ref", "-q", "HEAD")
	if dir != "" {
		cmd.Dir = dir
	}

	// symbolic-ref exits non-zero when HEAD is not a symbolic ref
	return cmd.Run() != nil
}

// IsDirty reports whether tracked files have uncommitted changes.
func IsDirty(dir string) (bool, error) {
	out, err := git(dir, "status", "--porcelain", "--untracked-files=no")
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// IsInsideWorkTree returns true if dir is inside a git work tree.
// If dir is empty, the current working directory is used.
func IsInsideWorkTree(dir string) bool {
	out, err := git(dir, "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// Describe returns the revision checked out in the repository containing dir.
func Describe(dir string) (Revision, error) {
	commit, err := HeadCommit(dir)
	if err != nil {
		return Revision{}, err
	}

	rev := Revision{Commit: commit}
	branch, err := CurrentBranch(dir)
	switch {
	case err == nil:
		rev.Branch = branch
	case !errors.Is(err, ErrDetachedHead):
		return Revision{}, err
	}

	if rev.Dirty, err = IsDirty(dir); err != nil {
		return Revision{}, err
	}
	return rev, nil
}
