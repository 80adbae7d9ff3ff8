package terminal

import "time"

// Size is a terminal window size in character cells.
type Size struct {
	Cols int
	Rows int
}

// IsZero reports whether no dimension was supplied.
func (s Size) IsZero() bool {
	return s.Cols <= 0 || s.Rows <= 0
}

// DefaultSize is used when a caller does not supply one.
var DefaultSize = Size{Cols: 80, Rows: 24}

func (s Size) orDefault(def Size) Size {
	if s.IsZero() {
		if def.IsZero() {
			return DefaultSize
		}
		return def
	}
	return s
}

// EnvVar is one KEY=VALUE pair added to a spawned program's environment.
type EnvVar struct {
	Key   string
	Value string
}

// AppSpec describes a program to run in place of the login shell.
type AppSpec struct {
	Command string
	Args    []string
	Env     []EnvVar
	// ReadyTimeout bounds how long a caller waits for the program's first
	// output before treating it as started anyway.
	ReadyTimeout time.Duration
}

// State is the lifecycle position of a terminal.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Live reports whether the terminal still accepts input.
func (s State) Live() bool {
	return s == StateStarting || s == StateRunning
}

// SpawnOptions configures Host.Spawn.
type SpawnOptions struct {
	ID   string
	Cwd  string
	Size Size
	App  *AppSpec
}

// Chunk is the answer to a Subscribe call.
type Chunk struct {
	// Seq is the high-water mark: the sequence number the next byte will get.
	Seq uint64
	// Data holds every retained byte from the requested cursor to Seq.
	Data []byte
	// Truncated is set when the cursor is below the retained low-water mark or
	// beyond Seq. Data is empty and the caller must resynchronize from LowWater.
	Truncated bool
	LowWater  uint64
}
