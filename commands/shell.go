package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/schaltwerk/schaltwerk/config"
	"github.com/schaltwerk/schaltwerk/events"
	"github.com/schaltwerk/schaltwerk/log"
	"github.com/schaltwerk/schaltwerk/terminal"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	ctrlQ        = 17
	outputPoll   = 100 * time.Millisecond
	eventsBuffer = 256
)

var (
	shellIDFlag  string
	shellCwdFlag string
)

// ShellCmd runs a login shell, or the given command, in a terminal owned by
// this process and attaches the caller's tty to it.
var ShellCmd = &cobra.Command{
	Use:   "shell [-- command args...]",
	Short: "Run a shell or command in a hosted terminal and attach to it",
	Long: `Run a login shell, or the command after --, in a pseudo-terminal owned by
schaltwerk and attach this terminal to it. Press Ctrl+Q to detach; detaching
kills the hosted process.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log.Initialize(false)
		defer log.Close()
		return runShell(cmd.Context(), config.LoadConfig(), args)
	},
}

func init() {
	ShellCmd.Flags().StringVar(&shellIDFlag, "id", "", "Terminal id (default: a random id)")
	ShellCmd.Flags().StringVar(&shellCwdFlag, "cwd", "", "Working directory (default: current directory)")
}

func runShell(parent context.Context, cfg *config.Config, args []string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	id := shellIDFlag
	if id == "" {
		id = "shell-" + uuid.NewString()[:8]
	}
	cwd := shellCwdFlag
	if cwd == "" {
		var err error
		if cwd, err = os.Getwd(); err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
	}

	bus := events.NewBus()
	defer bus.Close()
	evs, unsubscribe := bus.Subscribe(eventsBuffer)
	defer unsubscribe()

	host := terminal.NewHostFromConfig(cfg, bus)
	backend := terminal.NewLocalBackend(host)
	defer func() {
		if err := host.Shutdown(context.Background()); err != nil {
			log.ErrorLog.Printf("terminal host shutdown: %v", err)
		}
	}()

	fd := int(os.Stdin.Fd())
	size := terminal.Size{Cols: cfg.DefaultCols, Rows: cfg.DefaultRows}
	if cols, rows, err := term.GetSize(fd); err == nil {
		size = terminal.Size{Cols: cols, Rows: rows}
	}

	var err error
	if len(args) > 0 {
		err = backend.CreateApp(ctx, id, cwd, size, terminal.AppSpec{Command: args[0], Args: args[1:]})
	} else {
		err = backend.CreateWithSize(ctx, id, cwd, size)
	}
	if err != nil {
		return err
	}

	if term.IsTerminal(fd) {
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("failed to put terminal in raw mode: %w", err)
		}
		defer func() { _ = term.Restore(fd, oldState) }()
	}

	ctx, detach := context.WithCancel(ctx)
	defer detach()

	detector := &terminal.StuckDetector{
		Source:    host,
		Sink:      bus,
		Interval:  cfg.StuckPollDuration(),
		Threshold: cfg.StuckThresholdDuration(),
		TailLines: cfg.StuckTailLines,
	}
	detector.Track(id)
	go detector.Run(ctx)

	go pumpInput(os.Stdin, backend, id, detach)
	go watchSize(ctx, fd, backend, id)

	pump := &outputPump{backend: backend, ack: host, id: id, w: os.Stdout}
	code, err := pump.run(ctx, evs, outputPoll)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if err == nil {
		fmt.Fprintf(os.Stdout, "\r\n[process exited (code %d)]\r\n", code)
	}
	return nil
}

// pumpInput forwards keystrokes to the terminal. Ctrl+Q on its own detaches.
func pumpInput(r io.Reader, backend terminal.Backend, id string, detach func()) {
	buf := make([]byte, 1024)
	for {
		n, err := r.Read(buf)
		if n == 1 && buf[0] == ctrlQ {
			detach()
			return
		}
		if n > 0 {
			if werr := backend.Write(id, buf[:n]); werr != nil {
				log.WarningLog.Printf("terminal %s: input: %v", id, werr)
				detach()
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.WarningLog.Printf("terminal %s: stdin: %v", id, err)
			}
			return
		}
	}
}
