//go:build !windows

package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/schaltwerk/schaltwerk/log"
	"github.com/schaltwerk/schaltwerk/terminal"
	"golang.org/x/term"
)

// watchSize mirrors SIGWINCH resizes of the caller's tty onto the terminal.
func watchSize(ctx context.Context, fd int, backend terminal.Backend, id string) {
	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	defer signal.Stop(winch)
	for {
		select {
		case <-ctx.Done():
			return
		case <-winch:
			cols, rows, err := term.GetSize(fd)
			if err != nil {
				continue
			}
			if err := backend.Resize(id, terminal.Size{Cols: cols, Rows: rows}); err != nil {
				log.WarningLog.Printf("terminal %s: resize: %v", id, err)
			}
		}
	}
}
