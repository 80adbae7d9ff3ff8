package terminal

import (
	"errors"
	"fmt"
)

// Kind classifies terminal errors for callers that map them onto responses.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindExists
	KindIO
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "TerminalNotFound"
	case KindExists:
		return "TerminalExists"
	case KindIO:
		return "IoError"
	case KindInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

var (
	ErrTerminalNotFound = errors.New("terminal not found")
	ErrTerminalExists   = errors.New("terminal already exists")
	ErrIO               = errors.New("terminal i/o failure")
	ErrInternal         = errors.New("terminal internal error")
	// ErrSnapshotTruncated is matched by *TruncatedError.
	ErrSnapshotTruncated = errors.New("requested output is no longer retained")
)

// Error is returned by every Host operation that fails.
type Error struct {
	Kind Kind
	ID   string
	Err  error
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindNotFound:
		return ErrTerminalNotFound
	case KindExists:
		return ErrTerminalExists
	case KindIO:
		return ErrIO
	default:
		return ErrInternal
	}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("terminal %s: %v", e.ID, e.sentinel())
	}
	return fmt.Sprintf("terminal %s: %v: %v", e.ID, e.sentinel(), e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.sentinel()}
	}
	return []error{e.sentinel(), e.Err}
}

func notFound(id string) error {
	return &Error{Kind: KindNotFound, ID: id}
}

func exists(id string) error {
	return &Error{Kind: KindExists, ID: id}
}

func ioError(id string, err error) error {
	return &Error{Kind: KindIO, ID: id, Err: err}
}

func internal(id string, format string, args ...any) error {
	return &Error{Kind: KindInternal, ID: id, Err: fmt.Errorf(format, args...)}
}

// NotFoundError, ExistsError and IOError build classified errors for Backend
// implementations other than the Host.
func NotFoundError(id string) error      { return notFound(id) }
func ExistsError(id string) error        { return exists(id) }
func IOError(id string, err error) error { return ioError(id, err) }

// KindOf returns the classification of err, or 0 when err is not a terminal error.
func KindOf(err error) Kind {
	var terr *Error
	if errors.As(err, &terr) {
		return terr.Kind
	}
	return 0
}

// TruncatedError reports that a snapshot cursor fell below the retained
// low-water mark (or came from another terminal lifetime).
type TruncatedError struct {
	ID       string
	From     uint64
	LowWater uint64
	Seq      uint64
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("terminal %s: %v: from %d, retained %d..%d", e.ID, ErrSnapshotTruncated, e.From, e.LowWater, e.Seq)
}

func (e *TruncatedError) Unwrap() error {
	return ErrSnapshotTruncated
}
