package session

import (
	"time"
)

type State int

const (
	// Creating is set while the worktree and terminals are being set up.
	Creating State = iota
	// Running means the session's terminals were spawned by this process.
	Running
	// Stopped sessions have a worktree on disk but no live terminals.
	Stopped
	// Deleting is set while the teardown cascade runs.
	Deleting
)

func (s State) String() string {
	switch s {
	case Creating:
		return "creating"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Deleting:
		return "deleting"
	default:
		return "unknown"
	}
}

// GitStats summarizes a worktree's changes relative to its base.
type GitStats struct {
	FilesChanged   int
	Insertions     int
	Deletions      int
	HasUncommitted bool
}

// Session is a named unit of work bound to one worktree.
type Session struct {
	// Name is the validated session name.
	Name string
	// WorktreePath is <repo>/.schaltwerk/worktrees/<Name>.
	WorktreePath string
	// BaseBranch is the branch the worktree was created from. Empty for
	// sessions restored from disk.
	BaseBranch string
	// State is the lifecycle state.
	State State
	// TerminalIDs lists every terminal attached to the session.
	TerminalIDs []string
	// CreatedAt is when this process first learned about the session.
	CreatedAt time.Time
	// LastActivity is the last time activity was reported.
	LastActivity time.Time
	// GitStats is the last reported change summary.
	GitStats GitStats
}

func (s *Session) clone() Session {
	cp := *s
	cp.TerminalIDs = append([]string(nil), s.TerminalIDs...)
	return cp
}

func (s *Session) hasTerminal(id string) bool {
	for _, t := range s.TerminalIDs {
		if t == id {
			return true
		}
	}
	return false
}
