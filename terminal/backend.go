package terminal

import (
	"context"
)

// Backend is what the session layer drives. LocalBackend serves it from a
// Host; terminaltest.Backend is an in-memory stand-in.
type Backend interface {
	Create(ctx context.Context, id, cwd string) error
	CreateWithSize(ctx context.Context, id, cwd string, size Size) error
	CreateApp(ctx context.Context, id, cwd string, size Size, app AppSpec) error
	Write(id string, p []byte) error
	Resize(id string, size Size) error
	Close(id string) error
	Exists(id string) bool
	// Snapshot returns the high-water mark and every retained byte from
	// fromSeq. It never acknowledges. A cursor that is no longer retained
	// yields a *TruncatedError.
	Snapshot(id string, fromSeq uint64) (uint64, []byte, error)
}

// LocalBackend adapts a Host to Backend.
type LocalBackend struct {
	host *Host
}

var _ Backend = (*LocalBackend)(nil)

func NewLocalBackend(host *Host) *LocalBackend {
	return &LocalBackend{host: host}
}

// Host exposes the underlying host for callers that need Ack or the screen.
func (b *LocalBackend) Host() *Host {
	return b.host
}

func (b *LocalBackend) Create(ctx context.Context, id, cwd string) error {
	return b.host.Spawn(ctx, SpawnOptions{ID: id, Cwd: cwd})
}

func (b *LocalBackend) CreateWithSize(ctx context.Context, id, cwd string, size Size) error {
	return b.host.Spawn(ctx, SpawnOptions{ID: id, Cwd: cwd, Size: size})
}

func (b *LocalBackend) CreateApp(ctx context.Context, id, cwd string, size Size, app AppSpec) error {
	return b.host.Spawn(ctx, SpawnOptions{ID: id, Cwd: cwd, Size: size, App: &app})
}

func (b *LocalBackend) Write(id string, p []byte) error {
	return b.host.Write(id, p)
}

func (b *LocalBackend) Resize(id string, size Size) error {
	return b.host.Resize(id, size)
}

func (b *LocalBackend) Close(id string) error {
	return b.host.Kill(id)
}

func (b *LocalBackend) Exists(id string) bool {
	return b.host.Exists(id)
}

func (b *LocalBackend) Snapshot(id string, fromSeq uint64) (uint64, []byte, error) {
	c, err := b.host.Subscribe(id, fromSeq)
	if err != nil {
		return 0, nil, err
	}
	if c.Truncated {
		return c.Seq, nil, &TruncatedError{ID: id, From: fromSeq, LowWater: c.LowWater, Seq: c.Seq}
	}
	return c.Seq, c.Data, nil
}
