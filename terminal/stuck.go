package terminal

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/schaltwerk/schaltwerk/events"
	"github.com/schaltwerk/schaltwerk/log"
)

// HashSource yields a content hash of a terminal's visible tail.
// *Host satisfies it.
type HashSource interface {
	HashTailLines(id string, n int) (string, error)
}

// StuckDetector flags terminals whose visible tail has not changed for
// Threshold. Each transition is reported once: terminal-stuck when the tail
// goes quiet, terminal-unstuck on the first change after that.
type StuckDetector struct {
	Source    HashSource
	Sink      events.Sink
	Interval  time.Duration
	Threshold time.Duration
	TailLines int
	// Clock defaults to time.Now.
	Clock func() time.Time

	mu      sync.Mutex
	tracked map[string]*stuckState
}

type stuckState struct {
	seen      bool
	hash      string
	changedAt time.Time
	stuck     bool
}

func (d *StuckDetector) now() time.Time {
	if d.Clock != nil {
		return d.Clock()
	}
	return time.Now()
}

// Track starts watching id. Tracking an id twice is a no-op.
func (d *StuckDetector) Track(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tracked == nil {
		d.tracked = make(map[string]*stuckState)
	}
	if _, ok := d.tracked[id]; !ok {
		d.tracked[id] = &stuckState{}
	}
}

func (d *StuckDetector) Untrack(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.tracked, id)
}

// Tracked lists the watched ids.
func (d *StuckDetector) Tracked() []string {
	d.mu.Lock()
	ids := make([]string, 0, len(d.tracked))
	for id := range d.tracked {
		ids = append(ids, id)
	}
	d.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// IsStuck reports the last observed state of id.
func (d *StuckDetector) IsStuck(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.tracked[id]
	return ok && st.stuck
}

// Poll samples every tracked terminal once.
func (d *StuckDetector) Poll(now time.Time) {
	n := d.TailLines
	if n <= 0 {
		n = 10
	}
	for _, id := range d.Tracked() {
		hash, err := d.Source.HashTailLines(id, n)
		if err != nil {
			if errors.Is(err, ErrTerminalNotFound) {
				d.Untrack(id)
				continue
			}
			log.WarningLog.Printf("stuck detector: terminal %s: %v", id, err)
			continue
		}
		if ev, ok := d.observe(id, hash, now); ok && d.Sink != nil {
			d.Sink.Emit(ev)
		}
	}
}

func (d *StuckDetector) observe(id, hash string, now time.Time) (events.Event, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.tracked[id]
	if !ok {
		return events.Event{}, false
	}
	if !st.seen || hash != st.hash {
		wasStuck := st.stuck
		st.seen = true
		st.hash = hash
		st.changedAt = now
		st.stuck = false
		if wasStuck {
			return events.New(events.TerminalUnstuck).ForTerminal(id), true
		}
		return events.Event{}, false
	}
	if !st.stuck && now.Sub(st.changedAt) >= d.Threshold {
		st.stuck = true
		return events.New(events.TerminalStuck).ForTerminal(id).
			With("idle_ms", now.Sub(st.changedAt).Milliseconds()), true
	}
	return events.Event{}, false
}

// Run polls every Interval until ctx is done.
func (d *StuckDetector) Run(ctx context.Context) {
	interval := d.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Poll(d.now())
		}
	}
}
