//go:build windows

package commands

import (
	"context"
	"time"

	"github.com/schaltwerk/schaltwerk/terminal"
	"golang.org/x/term"
)

// watchSize polls the caller's console size since Windows has no SIGWINCH.
func watchSize(ctx context.Context, fd int, backend terminal.Backend, id string) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	lastCols, lastRows, _ := term.GetSize(fd)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cols, rows, err := term.GetSize(fd)
			if err != nil || (cols == lastCols && rows == lastRows) {
				continue
			}
			lastCols, lastRows = cols, rows
			_ = backend.Resize(id, terminal.Size{Cols: cols, Rows: rows})
		}
	}
}
