package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/schaltwerk/schaltwerk/events"
	"github.com/schaltwerk/schaltwerk/log"
	"github.com/schaltwerk/schaltwerk/terminal"
)

// acker releases delivered output. *terminal.Host implements it.
type acker interface {
	Ack(id string, upTo uint64) error
}

// outputPump copies one terminal's output to w from a cursor, acknowledging
// what it wrote.
type outputPump struct {
	backend terminal.Backend
	ack     acker
	id      string
	w       io.Writer
	cursor  uint64
}

func (p *outputPump) drain() error {
	seq, data, err := p.backend.Snapshot(p.id, p.cursor)
	var trunc *terminal.TruncatedError
	if errors.As(err, &trunc) {
		log.WarningLog.Printf("terminal %s: output from %d was dropped, resuming at %d", p.id, p.cursor, trunc.LowWater)
		p.cursor = trunc.LowWater
		seq, data, err = p.backend.Snapshot(p.id, p.cursor)
	}
	if err != nil {
		return err
	}
	if len(data) > 0 {
		if _, err := p.w.Write(data); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}
	p.cursor = seq
	if p.ack != nil && seq > 0 {
		if err := p.ack.Ack(p.id, seq); err != nil {
			return err
		}
	}
	return nil
}

// run drains on every output event for the terminal and every poll tick,
// until the terminal closes or ctx is done. It returns the exit code carried
// by the terminal-closed event.
func (p *outputPump) run(ctx context.Context, evs <-chan events.Event, poll time.Duration) (int, error) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	outputName := events.OutputEventName(p.id)
	for {
		select {
		case <-ctx.Done():
			_ = p.drain()
			return 0, ctx.Err()
		case <-ticker.C:
			if err := p.drain(); err != nil {
				return 0, err
			}
		case ev, ok := <-evs:
			if !ok {
				return 0, nil
			}
			if ev.TerminalID != p.id {
				continue
			}
			switch ev.Name {
			case outputName:
				if err := p.drain(); err != nil {
					return 0, err
				}
			case events.TerminalStuck:
				log.InfoLog.Printf("terminal %s looks stuck (idle %vms)", p.id, ev.Payload["idle_ms"])
			case events.TerminalUnstuck:
				log.InfoLog.Printf("terminal %s is producing output again", p.id)
			case events.TerminalClosed:
				if err := p.drain(); err != nil && !errors.Is(err, terminal.ErrTerminalNotFound) {
					return 0, err
				}
				code, _ := ev.Payload["exit_code"].(int)
				return code, nil
			}
		}
	}
}
