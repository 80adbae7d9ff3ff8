// Package terminaltest provides an in-memory terminal.Backend for tests of
// code that drives terminals without spawning processes.
package terminaltest

import (
	"context"
	"sort"
	"sync"

	"github.com/schaltwerk/schaltwerk/terminal"
)

// Terminal is the recorded state of one fake terminal.
type Terminal struct {
	ID     string
	Cwd    string
	Size   terminal.Size
	App    *terminal.AppSpec
	Input  []byte
	output *terminal.SeqBuffer
}

// Backend records every call and serves output injected with Emit.
type Backend struct {
	mu     sync.Mutex
	terms  map[string]*Terminal
	closed []string

	// CreateErr, when set, is returned by every create call for ids it
	// reports true for.
	CreateErr  error
	FailCreate func(id string) bool
	// CloseErr is returned by Close for ids it reports true for.
	CloseErr  error
	FailClose func(id string) bool
}

var _ terminal.Backend = (*Backend)(nil)

func New() *Backend {
	return &Backend{terms: make(map[string]*Terminal)}
}

func (b *Backend) create(id, cwd string, size terminal.Size, app *terminal.AppSpec) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.CreateErr != nil && (b.FailCreate == nil || b.FailCreate(id)) {
		return terminal.IOError(id, b.CreateErr)
	}
	if _, ok := b.terms[id]; ok {
		return terminal.ExistsError(id)
	}
	if size.IsZero() {
		size = terminal.DefaultSize
	}
	b.terms[id] = &Terminal{ID: id, Cwd: cwd, Size: size, App: app, output: terminal.NewSeqBuffer(0)}
	return nil
}

func (b *Backend) Create(ctx context.Context, id, cwd string) error {
	return b.create(id, cwd, terminal.Size{}, nil)
}

func (b *Backend) CreateWithSize(ctx context.Context, id, cwd string, size terminal.Size) error {
	return b.create(id, cwd, size, nil)
}

func (b *Backend) CreateApp(ctx context.Context, id, cwd string, size terminal.Size, app terminal.AppSpec) error {
	return b.create(id, cwd, size, &app)
}

func (b *Backend) Write(id string, p []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.terms[id]
	if !ok {
		return terminal.NotFoundError(id)
	}
	t.Input = append(t.Input, p...)
	return nil
}

func (b *Backend) Resize(id string, size terminal.Size) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.terms[id]
	if !ok {
		return terminal.NotFoundError(id)
	}
	t.Size = size
	return nil
}

func (b *Backend) Close(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.terms[id]; !ok {
		return terminal.NotFoundError(id)
	}
	if b.CloseErr != nil && (b.FailClose == nil || b.FailClose(id)) {
		return terminal.IOError(id, b.CloseErr)
	}
	delete(b.terms, id)
	b.closed = append(b.closed, id)
	return nil
}

func (b *Backend) Exists(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.terms[id]
	return ok
}

func (b *Backend) Snapshot(id string, fromSeq uint64) (uint64, []byte, error) {
	b.mu.Lock()
	t, ok := b.terms[id]
	b.mu.Unlock()
	if !ok {
		return 0, nil, terminal.NotFoundError(id)
	}
	c := t.output.Since(fromSeq)
	if c.Truncated {
		return c.Seq, nil, &terminal.TruncatedError{ID: id, From: fromSeq, LowWater: c.LowWater, Seq: c.Seq}
	}
	return c.Seq, c.Data, nil
}

// Emit appends p to id's output as if the program had printed it.
func (b *Backend) Emit(id string, p []byte) uint64 {
	b.mu.Lock()
	t, ok := b.terms[id]
	b.mu.Unlock()
	if !ok {
		return 0
	}
	return t.output.Append(p)
}

// Ack releases id's output below upTo.
func (b *Backend) Ack(id string, upTo uint64) error {
	b.mu.Lock()
	t, ok := b.terms[id]
	b.mu.Unlock()
	if !ok {
		return terminal.NotFoundError(id)
	}
	return t.output.Ack(upTo)
}

// Get returns a copy of id's recorded state.
func (b *Backend) Get(id string) (Terminal, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.terms[id]
	if !ok {
		return Terminal{}, false
	}
	cp := *t
	cp.Input = append([]byte(nil), t.Input...)
	return cp, true
}

// IDs lists the open terminals.
func (b *Backend) IDs() []string {
	b.mu.Lock()
	ids := make([]string, 0, len(b.terms))
	for id := range b.terms {
		ids = append(ids, id)
	}
	b.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Closed lists ids passed to a successful Close, in order.
func (b *Backend) Closed() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.closed...)
}
