package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRepo creates a test git repository with the specified default branch
func setupTestRepo(t *testing.T, repoPath string, defaultBranch string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(repoPath, 0755))
	gitRun(t, repoPath, "init", "-b", defaultBranch)
	gitRun(t, repoPath, "config", "user.email", "test@example.com")
	gitRun(t, repoPath, "config", "user.name", "Test User")

	testFile := filepath.Join(repoPath, "README.md")
	require.NoError(t, os.WriteFile(testFile, []byte("# Test Repo"), 0644))
	gitRun(t, repoPath, "add", ".")
	gitRun(t, repoPath, "commit", "-m", "Initial commit")
}

func gitRun(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
}

func TestFindRepoRoot(t *testing.T) {
	repoPath := filepath.Join(t.TempDir(), "repo")
	setupTestRepo(t, repoPath, "main")
	nested := filepath.Join(repoPath, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	root, err := FindRepoRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, repoPath, root)
	assert.True(t, IsGitRepo(nested))

	_, err = FindRepoRoot(t.TempDir())
	assert.Error(t, err)
}

func TestGetDefaultBranch(t *testing.T) {
	tempDir := t.TempDir()

	t.Run("detects main branch", func(t *testing.T) {
		repoPath := filepath.Join(tempDir, "repo-with-main")
		setupTestRepo(t, repoPath, "main")

		branch, err := GetDefaultBranch(repoPath)
		assert.NoError(t, err)
		assert.Equal(t, "main", branch)
	})

	t.Run("detects master branch", func(t *testing.T) {
		repoPath := filepath.Join(tempDir, "repo-with-master")
		setupTestRepo(t, repoPath, "master")

		branch, err := GetDefaultBranch(repoPath)
		assert.NoError(t, err)
		assert.Equal(t, "master", branch)
	})

	t.Run("prefers main over master", func(t *testing.T) {
		repoPath := filepath.Join(tempDir, "repo-with-both")
		setupTestRepo(t, repoPath, "main")
		gitRun(t, repoPath, "branch", "master")

		branch, err := GetDefaultBranch(repoPath)
		assert.NoError(t, err)
		assert.Equal(t, "main", branch)
	})

	t.Run("handles missing default branch", func(t *testing.T) {
		repoPath := filepath.Join(tempDir, "repo-with-custom")
		setupTestRepo(t, repoPath, "develop")

		_, err := GetDefaultBranch(repoPath)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "could not determine default branch")
	})
}

func TestBranchExistsAndCurrentBranch(t *testing.T) {
	repoPath := filepath.Join(t.TempDir(), "repo")
	setupTestRepo(t, repoPath, "main")
	gitRun(t, repoPath, "branch", "feature")

	ok, err := BranchExists(repoPath, "feature")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = BranchExists(repoPath, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	cur, err := CurrentBranch(repoPath)
	require.NoError(t, err)
	assert.Equal(t, "main", cur)
}

func TestSanitizeBranchName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Feature One", "Feature-One"},
		{"fix__bug", "fix__bug"},
		{"--x--", "x"},
		{"a$b%c", "abc"},
		{"Foo", "Foo"},
		{"foo", "foo"},
		{"a--b", "a--b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeBranchName(tt.in), tt.in)
	}
}
