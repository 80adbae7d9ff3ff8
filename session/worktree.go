package session

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// StateDirName is the per-repository directory holding session worktrees.
	StateDirName     = ".schaltwerk"
	WorktreesDirName = "worktrees"
)

// WorktreesDir is <repoRoot>/.schaltwerk/worktrees.
func WorktreesDir(repoRoot string) string {
	return filepath.Join(repoRoot, StateDirName, WorktreesDirName)
}

// WorktreePath is <repoRoot>/.schaltwerk/worktrees/<name>. External tooling
// relies on this layout.
func WorktreePath(repoRoot, name string) string {
	return filepath.Join(WorktreesDir(repoRoot), name)
}

// SessionNameFromPath recovers the session name from a worktree path or any
// path below it.
func SessionNameFromPath(path string) (string, error) {
	_, name, err := splitWorktreePath(path)
	return name, err
}

// RepoRootFromPath recovers the repository root from a worktree path or any
// path below it.
func RepoRootFromPath(path string) (string, error) {
	root, _, err := splitWorktreePath(path)
	return root, err
}

func splitWorktreePath(path string) (root, name string, err error) {
	parts := strings.Split(filepath.ToSlash(filepath.Clean(path)), "/")
	// The last match wins so a repository that itself lives inside another
	// worktree resolves to the innermost session.
	for i := len(parts) - 3; i >= 0; i-- {
		if parts[i] != StateDirName || parts[i+1] != WorktreesDirName {
			continue
		}
		name = parts[i+2]
		if err := ValidateSessionName(name); err != nil {
			return "", "", fmt.Errorf("%w: %s: %v", ErrNotWorktreePath, path, err)
		}
		root = strings.Join(parts[:i], "/")
		switch {
		case i == 0:
			root = "."
		case root == "":
			root = "/"
		}
		return filepath.FromSlash(root), name, nil
	}
	return "", "", fmt.Errorf("%w: %s", ErrNotWorktreePath, path)
}

// TopTerminalID names the agent terminal of a session.
func TopTerminalID(name string) string {
	return "session-" + name + "-top"
}

// BottomTerminalID names the shell terminal of a session.
func BottomTerminalID(name string) string {
	return "session-" + name + "-bottom"
}
