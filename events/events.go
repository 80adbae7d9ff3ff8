// Package events defines the domain events published by the terminal host and
// the session lifecycle, and the sinks they are delivered through. Publishers
// only know the Sink interface; transport and rendering live elsewhere.
package events

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Name identifies the kind of an event.
type Name string

const (
	SessionsRefreshed Name = "sessions-refreshed"
	SessionActivity   Name = "session-activity"
	SessionGitStats   Name = "session-git-stats"
	SessionAdded      Name = "session-added"
	SessionRemoved    Name = "session-removed"
	TerminalStuck     Name = "terminal-stuck"
	TerminalUnstuck   Name = "terminal-unstuck"
	TerminalClosed    Name = "terminal-closed"
)

const outputPrefix = "terminal-output-"

// OutputEventName returns the per-terminal output event name for id.
func OutputEventName(id string) Name {
	return Name(outputPrefix + id)
}

// IsOutput reports whether n is a per-terminal output event and returns the terminal id.
func (n Name) IsOutput() (string, bool) {
	if !strings.HasPrefix(string(n), outputPrefix) {
		return "", false
	}
	return strings.TrimPrefix(string(n), outputPrefix), true
}

// Event is a single notification with a minimal payload.
type Event struct {
	ID          string
	Name        Name
	SessionName string
	TerminalID  string
	Payload     map[string]any
	Timestamp   time.Time
}

// New builds an event with a fresh id and the current time.
func New(name Name) Event {
	return Event{
		ID:        uuid.NewString(),
		Name:      name,
		Timestamp: time.Now(),
	}
}

// ForTerminal returns a copy of e bound to a terminal id.
func (e Event) ForTerminal(id string) Event {
	e.TerminalID = id
	return e
}

// ForSession returns a copy of e bound to a session name.
func (e Event) ForSession(name string) Event {
	e.SessionName = name
	return e
}

// With returns a copy of e with key set in its payload.
func (e Event) With(key string, value any) Event {
	payload := make(map[string]any, len(e.Payload)+1)
	for k, v := range e.Payload {
		payload[k] = v
	}
	payload[key] = value
	e.Payload = payload
	return e
}

// Sink receives events. Emit must not block for long; it is called from
// terminal reader workers.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Nop discards every event.
var Nop Sink = SinkFunc(func(Event) {})

// Bus fans events out to subscribers. Slow subscribers miss events rather than
// stalling the publisher.
type Bus struct {
	mu     sync.Mutex
	subs   map[int64]chan Event
	seq    int64
	closed bool
	// Dropped counts events that could not be delivered to a full subscriber.
	Dropped atomic.Int64
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int64]chan Event)}
}

// Subscribe returns a channel of events and a function that cancels the subscription.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.seq++
	id := b.seq
	b.subs[id] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		if existing, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(existing)
		}
		b.mu.Unlock()
	}
}

func (b *Bus) Emit(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		select {
		case sub <- e:
		default:
			b.Dropped.Add(1)
		}
	}
}

// Close closes every subscriber channel. Later emits are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub)
	}
}

// Recorder keeps every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Named returns the recorded events with the given name, in order.
func (r *Recorder) Named(name Name) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
