package commands

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/schaltwerk/schaltwerk/events"
	"github.com/schaltwerk/schaltwerk/terminal/terminaltest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputPumpDrain(t *testing.T) {
	b := terminaltest.New()
	require.NoError(t, b.Create(context.Background(), "t", "/"))

	var out bytes.Buffer
	p := &outputPump{backend: b, ack: b, id: "t", w: &out}

	b.Emit("t", []byte("one "))
	require.NoError(t, p.drain())
	b.Emit("t", []byte("two"))
	require.NoError(t, p.drain())
	require.NoError(t, p.drain())

	assert.Equal(t, "one two", out.String())
	assert.Equal(t, uint64(7), p.cursor)
}

func TestOutputPumpResyncsAfterTruncation(t *testing.T) {
	b := terminaltest.New()
	require.NoError(t, b.Create(context.Background(), "t", "/"))
	b.Emit("t", []byte("abcdef"))
	require.NoError(t, b.Ack("t", 4))

	var out bytes.Buffer
	p := &outputPump{backend: b, id: "t", w: &out}
	require.NoError(t, p.drain())
	assert.Equal(t, "ef", out.String())
	assert.Equal(t, uint64(6), p.cursor)
}

func TestOutputPumpRun(t *testing.T) {
	b := terminaltest.New()
	require.NoError(t, b.Create(context.Background(), "t", "/"))

	var out bytes.Buffer
	p := &outputPump{backend: b, ack: b, id: "t", w: &out}
	evs := make(chan events.Event, 8)

	b.Emit("t", []byte("hello"))
	evs <- events.New(events.OutputEventName("other")).ForTerminal("other")
	evs <- events.New(events.OutputEventName("t")).ForTerminal("t")
	evs <- events.New(events.TerminalStuck).ForTerminal("t").With("idle_ms", int64(1))
	evs <- events.New(events.TerminalClosed).ForTerminal("t").With("exit_code", 7)

	code, err := p.run(context.Background(), evs, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 7, code)
	assert.Equal(t, "hello", out.String())
}

func TestOutputPumpRunStopsOnContext(t *testing.T) {
	b := terminaltest.New()
	require.NoError(t, b.Create(context.Background(), "t", "/"))
	p := &outputPump{backend: b, id: "t", w: &bytes.Buffer{}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.run(ctx, make(chan events.Event), time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
