package terminal

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBackend(t *testing.T) {
	h, _ := newTestHost(t)
	b := NewLocalBackend(h)
	ctx := context.Background()
	dir := t.TempDir()

	require.NoError(t, b.CreateApp(ctx, "app", dir, Size{Cols: 90, Rows: 30}, AppSpec{
		Command: "/bin/sh",
		Args:    []string{"-c", `printf "$GREETING"; exec cat`},
		Env:     []EnvVar{{Key: "GREETING", Value: "hi-from-env"}},
	}))
	assert.True(t, b.Exists("app"))

	require.Eventually(t, func() bool {
		_, data, err := b.Snapshot("app", 0)
		return err == nil && strings.Contains(string(data), "hi-from-env")
	}, waitFor, tick)

	seq, data, err := b.Snapshot("app", 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(data)), seq)

	// Snapshot never acknowledges.
	_, again, err := b.Snapshot("app", 0)
	require.NoError(t, err)
	assert.Equal(t, data, again)

	require.NoError(t, b.Host().Ack("app", seq))
	_, _, err = b.Snapshot("app", 0)
	var trunc *TruncatedError
	require.True(t, errors.As(err, &trunc))
	assert.ErrorIs(t, err, ErrSnapshotTruncated)
	assert.Equal(t, seq, trunc.LowWater)

	require.NoError(t, b.Resize("app", Size{Cols: 120, Rows: 40}))
	require.NoError(t, b.Write("app", []byte("x\n")))
	require.NoError(t, b.Close("app"))
	assert.False(t, b.Exists("app"))
	assert.ErrorIs(t, b.Close("app"), ErrTerminalNotFound)

	_, _, err = b.Snapshot("app", 0)
	assert.ErrorIs(t, err, ErrTerminalNotFound)
}

func TestLocalBackendCreateShell(t *testing.T) {
	h, _ := newTestHost(t)
	b := NewLocalBackend(h)

	require.NoError(t, b.Create(context.Background(), "plain", t.TempDir()))
	require.NoError(t, b.CreateWithSize(context.Background(), "sized", t.TempDir(), Size{Cols: 100, Rows: 50}))
	assert.ErrorIs(t, b.Create(context.Background(), "plain", t.TempDir()), ErrTerminalExists)
	assert.True(t, b.Exists("plain"))
	assert.True(t, b.Exists("sized"))
}
