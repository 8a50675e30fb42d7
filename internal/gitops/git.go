// Package gitops wraps the git commands the orchestration core needs.
// Commands run through an Exec interface so tests inject fakes.
package gitops

import (
	"errors"
	"fmt"
	"strings"
)

type Exec interface {
	Output(name string, args ...string) ([]byte, error)
	Run(name string, args ...string) error
}

// ErrNothingToCommit distinguishes "succeeded with no changes" from a
// real commit failure. Callers map it to the ledger's no-changes
// sentinel instead of escalating.
var ErrNothingToCommit = errors.New("nothing to commit")

type Git struct {
	exec Exec
}

func New(e Exec) *Git {
	return &Git{exec: e}
}

func (g *Git) git(dir string, args ...string) []string {
	return append([]string{"-C", dir}, args...)
}

// CurrentBranch returns the checked-out branch name.
func (g *Git) CurrentBranch(dir string) (string, error) {
	out, err := g.exec.Output("git", g.git(dir, "rev-parse", "--abbrev-ref", "HEAD")...)
	if err != nil {
		return "", err
	}
	branch := strings.TrimSpace(string(out))
	if branch == "" || branch == "HEAD" {
		return "", fmt.Errorf("no branch checked out in %s", dir)
	}
	return branch, nil
}

func (g *Git) CreateBranch(dir, name string) error {
	return g.exec.Run("git", g.git(dir, "checkout", "-b", name)...)
}

func (g *Git) Checkout(dir, ref string) error {
	return g.exec.Run("git", g.git(dir, "checkout", ref)...)
}

func (g *Git) AddAll(dir string) error {
	return g.exec.Run("git", g.git(dir, "add", "-A")...)
}

func (g *Git) AddFiles(dir string, files ...string) error {
	if len(files) == 0 {
		return nil
	}
	args := append([]string{"add", "--"}, files...)
	return g.exec.Run("git", g.git(dir, args...)...)
}

// Commit stages everything and commits. It returns the new commit
// hash, or ErrNothingToCommit when the tree was already clean.
func (g *Git) Commit(dir, message string) (string, error) {
	if err := g.AddAll(dir); err != nil {
		return "", err
	}
	out, err := g.exec.Output("git", g.git(dir, "commit", "-m", message)...)
	text := strings.ToLower(string(out))
	if strings.Contains(text, "nothing to commit") || strings.Contains(text, "nothing added to commit") {
		return "", ErrNothingToCommit
	}
	if err != nil {
		return "", fmt.Errorf("git commit: %w", err)
	}
	return g.headCommit(dir)
}

func (g *Git) headCommit(dir string) (string, error) {
	out, err := g.exec.Output("git", g.git(dir, "rev-parse", "HEAD")...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (g *Git) DiscardFileChanges(dir string, files ...string) error {
	if len(files) == 0 {
		return nil
	}
	args := append([]string{"checkout", "--"}, files...)
	return g.exec.Run("git", g.git(dir, args...)...)
}

// RevertToCommit hard-resets the tree to the given commit.
func (g *Git) RevertToCommit(dir, hash string) error {
	return g.exec.Run("git", g.git(dir, "reset", "--hard", hash)...)
}

// FetchBranch pulls a branch from another local repository so its
// commits become reachable here as FETCH_HEAD.
func (g *Git) FetchBranch(dir, remoteDir, branch string) error {
	return g.exec.Run("git", g.git(dir, "fetch", remoteDir, branch)...)
}

// ConflictFiles lists paths still carrying merge conflicts.
func (g *Git) ConflictFiles(dir string) ([]string, error) {
	out, err := g.exec.Output("git", g.git(dir, "diff", "--name-only", "--diff-filter=U")...)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(string(out))
	if text == "" {
		return []string{}, nil
	}
	return strings.Split(text, "\n"), nil
}

// MergeInProgress reports whether a merge has been started and not yet
// concluded.
func (g *Git) MergeInProgress(dir string) bool {
	err := g.exec.Run("git", g.git(dir, "rev-parse", "-q", "--verify", "MERGE_HEAD")...)
	return err == nil
}

// StartMerge begins merging the given ref without committing. A
// conflicting merge returns an error; the caller inspects
// ConflictFiles to decide what remains.
func (g *Git) StartMerge(dir, ref string) error {
	return g.exec.Run("git", g.git(dir, "merge", "--no-commit", "--no-ff", ref)...)
}

// IsMergeClean reports whether no conflicted paths remain in the
// working tree.
func (g *Git) IsMergeClean(dir string) (bool, error) {
	files, err := g.ConflictFiles(dir)
	if err != nil {
		return false, err
	}
	return len(files) == 0, nil
}
