package session

import (
	"fmt"
)

// MaxSessionNameLength bounds a session name in bytes.
const MaxSessionNameLength = 100

// ValidateSessionName accepts non-empty names of at most 100 ASCII letters,
// digits, '-' and '_'. Callers run it before any filesystem or git work.
func ValidateSessionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidSessionName)
	}
	if len(name) > MaxSessionNameLength {
		return fmt.Errorf("%w: name is %d characters, the limit is %d", ErrInvalidSessionName, len(name), MaxSessionNameLength)
	}
	for i := 0; i < len(name); i++ {
		if !validNameByte(name[i]) {
			return fmt.Errorf("%w: %q contains %q; use letters, digits, '-' or '_'", ErrInvalidSessionName, name, name[i])
		}
	}
	return nil
}

func validNameByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_':
		return true
	}
	return false
}
