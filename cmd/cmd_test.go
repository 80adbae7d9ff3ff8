package cmd

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToString(t *testing.T) {
	assert.Equal(t, "<nil>", ToString(nil))
	assert.Equal(t, "git worktree prune", ToString(exec.Command("git", "worktree", "prune")))
}

func TestExecOutput(t *testing.T) {
	out, err := MakeExecutor().Output(exec.Command("sh", "-c", "printf hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))
}

func TestExecCombinedOutput(t *testing.T) {
	out, err := MakeExecutor().CombinedOutput(exec.Command("sh", "-c", "printf out; printf err >&2; exit 3"))
	require.Error(t, err)
	assert.Contains(t, string(out), "out")
	assert.Contains(t, string(out), "err")
}
