package session

import "errors"

var (
	ErrInvalidSessionName = errors.New("invalid session name")
	ErrSessionExists      = errors.New("session already exists")
	ErrSessionNotFound    = errors.New("session not found")
	ErrNotWorktreePath    = errors.New("path is not inside a session worktree")
	ErrSessionBusy        = errors.New("session is busy")
	// ErrMergeInProgress is the busy result of a merge lock that another
	// workflow holds. It is retryable and never joined with other errors.
	ErrMergeInProgress = errors.New("merge already in progress for session")
)
