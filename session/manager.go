package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/schaltwerk/schaltwerk/events"
	"github.com/schaltwerk/schaltwerk/log"
	"github.com/schaltwerk/schaltwerk/terminal"
)

// WorktreeManager creates and removes the git worktree behind a session.
type WorktreeManager interface {
	CreateWorktree(ctx context.Context, name, path, baseBranch string) error
	RemoveWorktree(ctx context.Context, path string) error
}

type ManagerOptions struct {
	RepoRoot  string
	Backend   terminal.Backend
	Locks     *MergeLockRegistry
	Worktrees WorktreeManager
	Sink      events.Sink
	// Size is the initial size of spawned terminals.
	Size terminal.Size
}

// CreateOptions configures Manager.Create.
type CreateOptions struct {
	BaseBranch string
	// App replaces the login shell in the top terminal.
	App *terminal.AppSpec
}

// Manager binds sessions to worktrees and terminals. It holds no lock while
// calling the backend or the worktree manager.
type Manager struct {
	repoRoot  string
	backend   terminal.Backend
	locks     *MergeLockRegistry
	worktrees WorktreeManager
	sink      events.Sink
	size      terminal.Size

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(opts ManagerOptions) *Manager {
	if opts.Locks == nil {
		opts.Locks = NewMergeLockRegistry()
	}
	if opts.Sink == nil {
		opts.Sink = events.Nop
	}
	return &Manager{
		repoRoot:  opts.RepoRoot,
		backend:   opts.Backend,
		locks:     opts.Locks,
		worktrees: opts.Worktrees,
		sink:      opts.Sink,
		size:      opts.Size,
		sessions:  make(map[string]*Session),
	}
}

func (m *Manager) RepoRoot() string {
	return m.repoRoot
}

// Locks returns the merge lock registry shared with merge workflows.
func (m *Manager) Locks() *MergeLockRegistry {
	return m.locks
}

// Create validates name, creates the worktree, then spawns the top terminal
// (running opts.App when set) and the bottom shell. Any failure undoes the
// steps already taken.
func (m *Manager) Create(ctx context.Context, name string, opts CreateOptions) (Session, error) {
	if err := ValidateSessionName(name); err != nil {
		return Session{}, err
	}
	path := WorktreePath(m.repoRoot, name)
	now := time.Now()

	m.mu.Lock()
	if _, ok := m.sessions[name]; ok {
		m.mu.Unlock()
		return Session{}, fmt.Errorf("%w: %s", ErrSessionExists, name)
	}
	s := &Session{
		Name:         name,
		WorktreePath: path,
		BaseBranch:   opts.BaseBranch,
		State:        Creating,
		CreatedAt:    now,
		LastActivity: now,
	}
	m.sessions[name] = s
	m.mu.Unlock()

	fail := func(err error) (Session, error) {
		m.mu.Lock()
		delete(m.sessions, name)
		m.mu.Unlock()
		log.ErrorLog.Printf("session %s: create failed: %v", name, err)
		return Session{}, err
	}

	if err := m.worktrees.CreateWorktree(ctx, name, path, opts.BaseBranch); err != nil {
		return fail(fmt.Errorf("create worktree for %s: %w", name, err))
	}

	ids, err := m.spawnTerminals(ctx, name, path, opts.App)
	if err != nil {
		if rmErr := m.worktrees.RemoveWorktree(ctx, path); rmErr != nil {
			err = errors.Join(err, fmt.Errorf("remove worktree: %w", rmErr))
		}
		return fail(err)
	}

	m.mu.Lock()
	s.TerminalIDs = ids
	s.State = Running
	out := s.clone()
	m.mu.Unlock()

	log.InfoLog.Printf("session %s: created at %s", name, path)
	m.sink.Emit(events.New(events.SessionAdded).ForSession(name).With("worktree_path", path))
	m.refreshed()
	return out, nil
}

// spawnTerminals starts the top and bottom terminals. If the second spawn
// fails the first terminal is closed again.
func (m *Manager) spawnTerminals(ctx context.Context, name, path string, app *terminal.AppSpec) ([]string, error) {
	top, bottom := TopTerminalID(name), BottomTerminalID(name)

	var err error
	if app != nil {
		err = m.backend.CreateApp(ctx, top, path, m.size, *app)
	} else {
		err = m.backend.CreateWithSize(ctx, top, path, m.size)
	}
	if err != nil {
		return nil, fmt.Errorf("spawn top terminal: %w", err)
	}
	if err := m.backend.CreateWithSize(ctx, bottom, path, m.size); err != nil {
		err = fmt.Errorf("spawn bottom terminal: %w", err)
		if closeErr := m.backend.Close(top); closeErr != nil && !errors.Is(closeErr, terminal.ErrTerminalNotFound) {
			err = errors.Join(err, closeErr)
		}
		return nil, err
	}
	if app != nil && app.ReadyTimeout > 0 {
		m.waitReady(ctx, top, app.ReadyTimeout)
	}
	return []string{top, bottom}, nil
}

// waitReady waits for the first output of id. A program that stays silent
// is logged and treated as started.
func (m *Manager) waitReady(ctx context.Context, id string, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()
	for {
		if seq, _, err := m.backend.Snapshot(id, 0); err == nil && seq > 0 {
			return
		} else if err != nil && !errors.Is(err, terminal.ErrSnapshotTruncated) {
			log.WarningLog.Printf("terminal %s: readiness check: %v", id, err)
			return
		}
		select {
		case <-ctx.Done():
			log.WarningLog.Printf("terminal %s: no output within %s", id, timeout)
			return
		case <-ticker.C:
		}
	}
}

// Start respawns the terminals of a Stopped session, each with a fresh
// sequence space.
func (m *Manager) Start(ctx context.Context, name string, app *terminal.AppSpec) (Session, error) {
	if err := ValidateSessionName(name); err != nil {
		return Session{}, err
	}
	m.mu.Lock()
	s, ok := m.sessions[name]
	if !ok {
		m.mu.Unlock()
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, name)
	}
	if s.State != Stopped {
		m.mu.Unlock()
		return Session{}, fmt.Errorf("%w: %s is %s", ErrSessionBusy, name, s.State)
	}
	s.State = Creating
	path := s.WorktreePath
	m.mu.Unlock()

	ids, err := m.spawnTerminals(ctx, name, path, app)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		s.State = Stopped
		return Session{}, err
	}
	s.TerminalIDs = ids
	s.State = Running
	return s.clone(), nil
}

// AttachTerminal records an extra terminal as belonging to name so Delete
// closes it too.
func (m *Manager) AttachTerminal(name, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, name)
	}
	if !s.hasTerminal(id) {
		s.TerminalIDs = append(s.TerminalIDs, id)
	}
	return nil
}

func (m *Manager) Get(name string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[name]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, name)
	}
	return s.clone(), nil
}

// List returns every session ordered by name.
func (m *Manager) List() []Session {
	m.mu.RLock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.clone())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Merge runs fn under the session's merge lock. A held lock yields
// ErrMergeInProgress and fn is not called. The session is read once the lock
// is held, so fn never sees a session that a finished Delete removed.
func (m *Manager) Merge(ctx context.Context, name string, fn func(ctx context.Context, s Session) error) error {
	if err := ValidateSessionName(name); err != nil {
		return err
	}
	if _, err := m.Get(name); err != nil {
		return err
	}
	ran, err := m.locks.RunExclusive(name, func() error {
		s, err := m.Get(name)
		if err != nil {
			return err
		}
		if s.State == Creating || s.State == Deleting {
			return fmt.Errorf("%w: %s is %s", ErrSessionBusy, name, s.State)
		}
		return fn(ctx, s)
	})
	if !ran {
		return ErrMergeInProgress
	}
	return err
}

// Delete tears a session down: it takes the merge lock, closes every
// attached terminal, releases the lock and removes the worktree. A session
// whose merge lock is held is left untouched and ErrMergeInProgress is
// returned.
func (m *Manager) Delete(ctx context.Context, name string) error {
	if err := ValidateSessionName(name); err != nil {
		return err
	}

	guard, ok := m.locks.TryAcquire(name)
	if !ok {
		return ErrMergeInProgress
	}
	released := false
	release := func() {
		if !released {
			guard.Release()
			released = true
		}
	}
	defer release()

	m.mu.Lock()
	s, ok := m.sessions[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, name)
	}
	if s.State == Creating || s.State == Deleting {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrSessionBusy, name, s.State)
	}
	prev := s.State
	s.State = Deleting
	ids := append([]string(nil), s.TerminalIDs...)
	path := s.WorktreePath
	m.mu.Unlock()

	restore := func() {
		m.mu.Lock()
		s.State = prev
		m.mu.Unlock()
	}

	var errs []error
	var open []string
	for _, id := range ids {
		if err := m.backend.Close(id); err != nil && !errors.Is(err, terminal.ErrTerminalNotFound) {
			errs = append(errs, fmt.Errorf("close terminal %s: %w", id, err))
			open = append(open, id)
		}
	}
	if len(errs) > 0 {
		m.mu.Lock()
		s.TerminalIDs = open
		m.mu.Unlock()
		restore()
		return errors.Join(errs...)
	}
	m.mu.Lock()
	s.TerminalIDs = nil
	m.mu.Unlock()
	release()

	if err := m.worktrees.RemoveWorktree(ctx, path); err != nil {
		m.mu.Lock()
		s.State = Stopped
		m.mu.Unlock()
		return fmt.Errorf("remove worktree for %s: %w", name, err)
	}

	m.mu.Lock()
	delete(m.sessions, name)
	m.mu.Unlock()

	log.InfoLog.Printf("session %s: deleted", name)
	m.sink.Emit(events.New(events.SessionRemoved).ForSession(name))
	m.refreshed()
	return nil
}

// Restore registers every session whose worktree directory exists on disk
// and is not yet known, in state Stopped. It returns how many were added.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	names, err := DiscoverSessions(m.repoRoot)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	added := 0
	m.mu.Lock()
	for _, name := range names {
		if _, ok := m.sessions[name]; ok {
			continue
		}
		m.sessions[name] = &Session{
			Name:         name,
			WorktreePath: WorktreePath(m.repoRoot, name),
			State:        Stopped,
			CreatedAt:    now,
		}
		added++
	}
	m.mu.Unlock()
	if added > 0 {
		log.InfoLog.Printf("restored %d sessions from %s", added, WorktreesDir(m.repoRoot))
		m.refreshed()
	}
	return added, ctx.Err()
}

// DiscoverSessions lists the session names that have a worktree directory
// under repoRoot. Entries that are not valid session names are skipped.
func DiscoverSessions(repoRoot string) ([]string, error) {
	dir := WorktreesDir(repoRoot)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name, err := SessionNameFromPath(filepath.Join(dir, e.Name()))
		if err != nil {
			log.WarningLog.Printf("skipping worktree dir %q: %v", e.Name(), err)
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// ReportActivity records that name did something and publishes it.
func (m *Manager) ReportActivity(name string) error {
	now := time.Now()
	m.mu.Lock()
	s, ok := m.sessions[name]
	if ok {
		s.LastActivity = now
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, name)
	}
	m.sink.Emit(events.New(events.SessionActivity).ForSession(name).With("last_activity", now))
	return nil
}

// ReportGitStats stores and publishes the change summary of name.
func (m *Manager) ReportGitStats(name string, stats GitStats) error {
	m.mu.Lock()
	s, ok := m.sessions[name]
	if ok {
		s.GitStats = stats
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, name)
	}
	m.sink.Emit(events.New(events.SessionGitStats).ForSession(name).
		With("files_changed", stats.FilesChanged).
		With("insertions", stats.Insertions).
		With("deletions", stats.Deletions).
		With("has_uncommitted", stats.HasUncommitted))
	return nil
}

func (m *Manager) refreshed() {
	m.mu.RLock()
	n := len(m.sessions)
	m.mu.RUnlock()
	m.sink.Emit(events.New(events.SessionsRefreshed).With("count", n))
}
