package terminal

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/schaltwerk/schaltwerk/config"
	"github.com/schaltwerk/schaltwerk/events"
	"github.com/schaltwerk/schaltwerk/log"
	"golang.org/x/sync/errgroup"
)

const (
	readChunkSize  = 32 * 1024
	readerJoinWait = 5 * time.Second
	shutdownLimit  = 8
)

// HostOptions configures a Host. Zero values fall back to defaults.
type HostOptions struct {
	// Shell is the program started when a spawn carries no AppSpec.
	Shell       string
	DefaultSize Size
	// BufferLimit caps retained output per terminal in bytes.
	BufferLimit int
	// KillGrace is how long Kill waits after SIGHUP before SIGKILL.
	KillGrace time.Duration
	Sink      events.Sink
}

// Host owns every pseudo-terminal of the process. Mutating calls on one id
// are serialized; calls on different ids run in parallel.
type Host struct {
	opts HostOptions

	mu     sync.RWMutex
	terms  map[string]*term
	closed bool

	shutdownOnce sync.Once
	shutdownErr  error
}

type term struct {
	id string

	// op serializes Spawn, Write, Resize and Kill for this id.
	op      sync.Mutex
	removed bool
	size    Size
	cmd     *exec.Cmd
	ptmx    *os.File

	state    atomic.Int32
	killing  atomic.Bool
	reported atomic.Bool

	buf    *SeqBuffer
	screen *Screen
	done   chan struct{}
	// exitCode is written by the reader before done is closed.
	exitCode int
}

func (t *term) State() State {
	return State(t.state.Load())
}

func NewHost(opts HostOptions) *Host {
	if opts.Shell == "" {
		opts.Shell = "/bin/sh"
	}
	opts.DefaultSize = opts.DefaultSize.orDefault(DefaultSize)
	if opts.KillGrace <= 0 {
		opts.KillGrace = 500 * time.Millisecond
	}
	if opts.Sink == nil {
		opts.Sink = events.Nop
	}
	return &Host{opts: opts, terms: make(map[string]*term)}
}

// NewHostFromConfig builds a Host from the user's configuration.
func NewHostFromConfig(cfg *config.Config, sink events.Sink) *Host {
	return NewHost(HostOptions{
		Shell:       cfg.ResolveShell(),
		DefaultSize: Size{Cols: cfg.DefaultCols, Rows: cfg.DefaultRows},
		BufferLimit: cfg.OutputBufferLimit,
		KillGrace:   cfg.KillGraceDuration(),
		Sink:        sink,
	})
}

// Spawn starts a login shell, or opts.App when set, attached to a new
// pseudo-terminal. The id is reserved before any process is started so a
// concurrent Spawn of the same id fails with ErrTerminalExists. An entry whose
// process already exited is replaced and starts a fresh sequence space.
func (h *Host) Spawn(ctx context.Context, opts SpawnOptions) error {
	if opts.ID == "" {
		return internal(opts.ID, "terminal id must not be empty")
	}
	size := opts.Size.orDefault(h.opts.DefaultSize)

	t := &term{
		id:     opts.ID,
		size:   size,
		buf:    NewSeqBuffer(h.opts.BufferLimit),
		screen: NewScreen(size),
		done:   make(chan struct{}),
	}
	t.state.Store(int32(StateStarting))
	t.op.Lock()
	defer t.op.Unlock()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return internal(opts.ID, "host is shut down")
	}
	if old, ok := h.terms[opts.ID]; ok && old.State() != StateClosed {
		h.mu.Unlock()
		return exists(opts.ID)
	}
	if err := ctx.Err(); err != nil {
		h.mu.Unlock()
		return ioError(opts.ID, err)
	}
	h.terms[opts.ID] = t
	h.mu.Unlock()

	cmd := h.command(opts)
	ptmx, err := startPTY(cmd, size)
	if err != nil {
		t.removed = true
		t.state.Store(int32(StateClosed))
		h.remove(t)
		log.ErrorLog.Printf("terminal %s: spawn %s in %s: %v", opts.ID, cmd.Path, opts.Cwd, err)
		return ioError(opts.ID, err)
	}
	t.cmd = cmd
	t.ptmx = ptmx
	t.state.Store(int32(StateRunning))
	go h.readLoop(t)

	log.InfoLog.Printf("terminal %s: started pid %d (%dx%d) in %s", opts.ID, cmd.Process.Pid, size.Cols, size.Rows, opts.Cwd)
	return nil
}

func (h *Host) command(opts SpawnOptions) *exec.Cmd {
	var cmd *exec.Cmd
	if opts.App != nil && opts.App.Command != "" {
		cmd = exec.Command(opts.App.Command, opts.App.Args...)
	} else {
		cmd = exec.Command(h.opts.Shell, "-l")
	}
	cmd.Dir = opts.Cwd
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	if opts.App != nil {
		for _, kv := range opts.App.Env {
			cmd.Env = append(cmd.Env, kv.Key+"="+kv.Value)
		}
	}
	return cmd
}

// readLoop is the single reader of a terminal's output. It exits once the
// slave side is closed, then reaps the process.
func (h *Host) readLoop(t *term) {
	defer close(t.done)
	every := log.NewEvery(5 * time.Second)
	buf := make([]byte, readChunkSize)
	for {
		n, err := t.ptmx.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			seq := t.buf.Append(chunk)
			_, _ = t.screen.Write(chunk)
			h.opts.Sink.Emit(events.New(events.OutputEventName(t.id)).ForTerminal(t.id).With("seq", seq))
		}
		if err != nil {
			if !isHangup(err) && !t.killing.Load() && every.ShouldLog() {
				log.WarningLog.Printf("terminal %s: read: %v", t.id, err)
			}
			break
		}
	}

	code := exitCode(t.cmd.Wait())
	_ = t.ptmx.Close()
	t.exitCode = code
	t.state.Store(int32(StateClosed))
	if !t.killing.Load() && t.reported.CompareAndSwap(false, true) {
		log.InfoLog.Printf("terminal %s: exited with code %d", t.id, code)
		h.opts.Sink.Emit(events.New(events.TerminalClosed).ForTerminal(t.id).
			With("exit_code", code).
			With("crashed", code != 0).
			With("killed", false))
	}
}

// isHangup reports the errors a master returns once every slave fd is closed.
func isHangup(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, syscall.EIO) || errors.Is(err, os.ErrClosed)
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func (h *Host) lookup(id string) (*term, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	t, ok := h.terms[id]
	if !ok {
		return nil, notFound(id)
	}
	return t, nil
}

func (h *Host) remove(t *term) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.terms[t.id]; ok && cur == t {
		delete(h.terms, t.id)
	}
}

// Write forwards p to the terminal's input.
func (h *Host) Write(id string, p []byte) error {
	t, err := h.lookup(id)
	if err != nil {
		return err
	}
	t.op.Lock()
	defer t.op.Unlock()
	if t.removed {
		return notFound(id)
	}
	if t.State() != StateRunning {
		return ioError(id, errors.New("terminal has exited"))
	}
	if _, err := t.ptmx.Write(p); err != nil {
		return ioError(id, err)
	}
	return nil
}

// Resize changes the window size of the terminal and of its screen model.
func (h *Host) Resize(id string, size Size) error {
	t, err := h.lookup(id)
	if err != nil {
		return err
	}
	if size.IsZero() {
		return internal(id, "invalid size %dx%d", size.Cols, size.Rows)
	}
	t.op.Lock()
	defer t.op.Unlock()
	if t.removed {
		return notFound(id)
	}
	if t.State() != StateRunning {
		return ioError(id, errors.New("terminal has exited"))
	}
	if err := setSize(t.ptmx, size); err != nil {
		return ioError(id, err)
	}
	t.size = size
	t.screen.Resize(size)
	return nil
}

// Kill terminates the terminal's process tree and forgets the id. When
// several callers race, exactly one succeeds and the rest get
// ErrTerminalNotFound.
func (h *Host) Kill(id string) error {
	return h.kill(context.Background(), id)
}

// kill is Kill with the grace period cut short once ctx is done.
func (h *Host) kill(ctx context.Context, id string) error {
	t, err := h.lookup(id)
	if err != nil {
		return err
	}
	t.op.Lock()
	defer t.op.Unlock()
	if t.removed {
		return notFound(id)
	}
	t.removed = true
	t.killing.Store(true)

	err = h.terminate(ctx, t)
	h.remove(t)
	code := -1
	select {
	case <-t.done:
		code = t.exitCode
	default:
	}
	if t.reported.CompareAndSwap(false, true) {
		h.opts.Sink.Emit(events.New(events.TerminalClosed).ForTerminal(id).
			With("exit_code", code).
			With("crashed", false).
			With("killed", true))
	}
	log.InfoLog.Printf("terminal %s: killed", id)
	if err != nil {
		return internal(id, "terminate: %v", err)
	}
	return nil
}

// terminate hangs up the process group, escalates to SIGKILL after the grace
// period, closes the master and joins the reader.
func (h *Host) terminate(ctx context.Context, t *term) error {
	if t.cmd == nil || t.cmd.Process == nil {
		return nil
	}
	var errs []error
	select {
	case <-t.done:
	default:
		pid := t.cmd.Process.Pid
		procs := descendants(pid)
		if err := hangup(pid); err != nil {
			errs = append(errs, err)
		}
		select {
		case <-t.done:
		case <-ctx.Done():
			if err := forceKill(pid, procs); err != nil {
				errs = append(errs, err)
			}
		case <-time.After(h.opts.KillGrace):
			if err := forceKill(pid, procs); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := t.ptmx.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		errs = append(errs, err)
	}
	select {
	case <-t.done:
	case <-time.After(readerJoinWait):
		errs = append(errs, errors.New("output reader did not exit"))
	}
	return errors.Join(errs...)
}

// Subscribe returns every retained byte from offset from. It never blocks
// and never removes data.
func (h *Host) Subscribe(id string, from uint64) (Chunk, error) {
	t, err := h.lookup(id)
	if err != nil {
		return Chunk{}, err
	}
	return t.buf.Since(from), nil
}

// Ack releases output below upTo for the terminal.
func (h *Host) Ack(id string, upTo uint64) error {
	t, err := h.lookup(id)
	if err != nil {
		return err
	}
	if err := t.buf.Ack(upTo); err != nil {
		return internal(id, "%v", err)
	}
	return nil
}

// Exists reports whether id names a live terminal.
func (h *Host) Exists(id string) bool {
	t, err := h.lookup(id)
	return err == nil && t.State().Live()
}

// State returns the lifecycle state of id.
func (h *Host) State(id string) (State, error) {
	t, err := h.lookup(id)
	if err != nil {
		return 0, err
	}
	return t.State(), nil
}

// Wait blocks until the terminal's process has exited and its output has
// been drained, or ctx is done.
func (h *Host) Wait(ctx context.Context, id string) (int, error) {
	t, err := h.lookup(id)
	if err != nil {
		return 0, err
	}
	select {
	case <-t.done:
		return t.exitCode, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// TailLines returns the last n meaningful rows of the terminal's screen.
func (h *Host) TailLines(id string, n int) ([]string, error) {
	t, err := h.lookup(id)
	if err != nil {
		return nil, err
	}
	return t.screen.TailLines(n), nil
}

// HashTailLines hashes the last n meaningful rows of the terminal's screen.
func (h *Host) HashTailLines(id string, n int) (string, error) {
	t, err := h.lookup(id)
	if err != nil {
		return "", err
	}
	return t.screen.HashTailLines(n), nil
}

// IDs lists every known terminal id, including exited ones not yet killed.
func (h *Host) IDs() []string {
	h.mu.RLock()
	ids := make([]string, 0, len(h.terms))
	for id := range h.terms {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Shutdown kills every terminal in parallel and refuses later spawns. Every
// terminal is killed even when ctx is done; ctx only shortens the grace
// period before SIGKILL. Only the first call does any work.
func (h *Host) Shutdown(ctx context.Context) error {
	h.shutdownOnce.Do(func() {
		h.mu.Lock()
		h.closed = true
		h.mu.Unlock()
		ids := h.IDs()

		var (
			mu   sync.Mutex
			errs []error
		)
		var g errgroup.Group
		g.SetLimit(shutdownLimit)
		for _, id := range ids {
			g.Go(func() error {
				if err := h.kill(ctx, id); err != nil && !errors.Is(err, ErrTerminalNotFound) {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()
		h.shutdownErr = errors.Join(errs...)
		log.InfoLog.Printf("terminal host shut down (%d terminals)", len(ids))
	})
	return h.shutdownErr
}
