package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/schaltwerk/schaltwerk/cmd"
	"github.com/schaltwerk/schaltwerk/log"
)

// Worktrees creates and removes session worktrees with the git CLI. It
// satisfies session.WorktreeManager.
type Worktrees struct {
	RepoRoot     string
	BranchPrefix string
	Exec         cmd.Executor
}

func NewWorktrees(repoRoot, branchPrefix string) *Worktrees {
	return &Worktrees{RepoRoot: repoRoot, BranchPrefix: branchPrefix, Exec: cmd.MakeExecutor()}
}

// BranchName is the branch a session's worktree checks out.
func (w *Worktrees) BranchName(name string) string {
	return w.BranchPrefix + sanitizeBranchName(name)
}

// CreateWorktree checks out the session branch at path. An existing branch is
// reused; otherwise it is created from baseBranch, or HEAD when empty.
func (w *Worktrees) CreateWorktree(ctx context.Context, name, path, baseBranch string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create worktrees directory: %w", err)
	}
	branch := w.BranchName(name)
	exists, err := BranchExists(w.RepoRoot, branch)
	if err != nil {
		return err
	}

	var args []string
	if exists {
		args = []string{"worktree", "add", path, branch}
	} else {
		base := baseBranch
		if base == "" {
			base = "HEAD"
		}
		args = []string{"worktree", "add", "-b", branch, path, base}
	}
	if _, err := w.run(ctx, args...); err != nil {
		return fmt.Errorf("failed to create worktree for branch %s: %w", branch, err)
	}
	log.InfoLog.Printf("created worktree %s on branch %s", path, branch)
	return nil
}

// RemoveWorktree force-removes the worktree at path and prunes stale
// administrative files. A path that no longer exists is only pruned.
func (w *Worktrees) RemoveWorktree(ctx context.Context, path string) error {
	var errs []error
	if _, err := os.Stat(path); err == nil {
		if _, err := w.run(ctx, "worktree", "remove", "-f", path); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove worktree: %w", err))
		}
	} else if !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("failed to check worktree path: %w", err))
	}
	if _, err := w.run(ctx, "worktree", "prune"); err != nil {
		errs = append(errs, fmt.Errorf("failed to prune worktrees: %w", err))
	}
	return errors.Join(errs...)
}

func (w *Worktrees) run(ctx context.Context, args ...string) (string, error) {
	c := exec.CommandContext(ctx, "git", append([]string{"-C", w.RepoRoot}, args...)...)
	output, err := w.Exec.CombinedOutput(c)
	if err != nil {
		return "", fmt.Errorf("git command failed: %s (%w)", output, err)
	}
	return string(output), nil
}
