package git

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/schaltwerk/schaltwerk/cmd"
	"github.com/schaltwerk/schaltwerk/cmd/cmd_test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingExec(calls *[]string, fail string) cmd_test.MockCmdExec {
	return cmd_test.MockCmdExec{
		CombinedOutputFunc: func(c *exec.Cmd) ([]byte, error) {
			line := strings.Join(c.Args[3:], " ")
			*calls = append(*calls, line)
			if fail != "" && strings.HasPrefix(line, fail) {
				return []byte("fatal: nope"), errors.New("exit status 128")
			}
			return nil, nil
		},
	}
}

func TestWorktreesCreateCommands(t *testing.T) {
	repoPath := filepath.Join(t.TempDir(), "repo")
	setupTestRepo(t, repoPath, "main")
	gitRun(t, repoPath, "branch", "schaltwerk/existing")
	ctx := context.Background()

	var calls []string
	w := &Worktrees{RepoRoot: repoPath, BranchPrefix: "schaltwerk/", Exec: recordingExec(&calls, "")}

	newPath := filepath.Join(repoPath, ".schaltwerk", "worktrees", "fresh")
	require.NoError(t, w.CreateWorktree(ctx, "fresh", newPath, "main"))
	require.NoError(t, w.CreateWorktree(ctx, "existing", filepath.Join(repoPath, ".schaltwerk", "worktrees", "existing"), ""))
	require.NoError(t, w.CreateWorktree(ctx, "headless", filepath.Join(repoPath, ".schaltwerk", "worktrees", "headless"), ""))

	require.Len(t, calls, 3)
	assert.Equal(t, "worktree add -b schaltwerk/fresh "+newPath+" main", calls[0])
	assert.Equal(t, "worktree add "+filepath.Join(repoPath, ".schaltwerk", "worktrees", "existing")+" schaltwerk/existing", calls[1])
	assert.True(t, strings.HasSuffix(calls[2], " HEAD"))
	assert.DirExists(t, filepath.Join(repoPath, ".schaltwerk", "worktrees"))
}

func TestWorktreesBranchNameKeepsCase(t *testing.T) {
	repoPath := filepath.Join(t.TempDir(), "repo")
	setupTestRepo(t, repoPath, "main")
	gitRun(t, repoPath, "branch", "schaltwerk/foo")

	var calls []string
	w := &Worktrees{RepoRoot: repoPath, BranchPrefix: "schaltwerk/", Exec: recordingExec(&calls, "")}
	assert.Equal(t, "schaltwerk/Foo", w.BranchName("Foo"))
	assert.NotEqual(t, w.BranchName("foo"), w.BranchName("Foo"))

	path := filepath.Join(repoPath, ".schaltwerk", "worktrees", "Foo")
	require.NoError(t, w.CreateWorktree(context.Background(), "Foo", path, "main"))
	require.Len(t, calls, 1)
	assert.Equal(t, "worktree add -b schaltwerk/Foo "+path+" main", calls[0])
}

func TestWorktreesCreateFailure(t *testing.T) {
	repoPath := filepath.Join(t.TempDir(), "repo")
	setupTestRepo(t, repoPath, "main")

	var calls []string
	w := &Worktrees{RepoRoot: repoPath, BranchPrefix: "p/", Exec: recordingExec(&calls, "worktree add")}
	err := w.CreateWorktree(context.Background(), "s", filepath.Join(repoPath, "wt"), "main")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fatal: nope")
}

func TestWorktreesRemoveCommands(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "wt")
	require.NoError(t, os.MkdirAll(existing, 0755))

	var calls []string
	w := &Worktrees{RepoRoot: dir, Exec: recordingExec(&calls, "")}

	require.NoError(t, w.RemoveWorktree(context.Background(), existing))
	assert.Equal(t, []string{"worktree remove -f " + existing, "worktree prune"}, calls)

	calls = nil
	require.NoError(t, w.RemoveWorktree(context.Background(), filepath.Join(dir, "missing")))
	assert.Equal(t, []string{"worktree prune"}, calls)

	calls = nil
	w.Exec = recordingExec(&calls, "worktree remove")
	err := w.RemoveWorktree(context.Background(), existing)
	require.Error(t, err)
	assert.Equal(t, []string{"worktree remove -f " + existing, "worktree prune"}, calls, "prune still runs")
}

func TestWorktreesWithGit(t *testing.T) {
	repoPath := filepath.Join(t.TempDir(), "repo")
	setupTestRepo(t, repoPath, "main")
	ctx := context.Background()

	w := NewWorktrees(repoPath, "schaltwerk/")
	assert.IsType(t, cmd.Exec{}, w.Exec)
	path := filepath.Join(repoPath, ".schaltwerk", "worktrees", "focused_carson")

	require.NoError(t, w.CreateWorktree(ctx, "focused_carson", path, "main"))
	assert.FileExists(t, filepath.Join(path, "README.md"))
	ok, err := BranchExists(repoPath, "schaltwerk/focused_carson")
	require.NoError(t, err)
	assert.True(t, ok)

	root, err := FindRepoRoot(path)
	require.NoError(t, err)
	assert.Equal(t, path, root)

	require.NoError(t, w.RemoveWorktree(ctx, path))
	assert.NoDirExists(t, path)

	// The branch survives removal and is reused.
	require.NoError(t, w.CreateWorktree(ctx, "focused_carson", path, "main"))
	require.NoError(t, w.RemoveWorktree(ctx, path))
}
