package terminal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/schaltwerk/schaltwerk/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHashes struct {
	mu     sync.Mutex
	hashes map[string]string
	errs   map[string]error
}

func (f *fakeHashes) set(id, hash string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hashes == nil {
		f.hashes = map[string]string{}
	}
	f.hashes[id] = hash
}

func (f *fakeHashes) fail(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errs == nil {
		f.errs = map[string]error{}
	}
	f.errs[id] = err
}

func (f *fakeHashes) HashTailLines(id string, n int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[id]; err != nil {
		return "", err
	}
	return f.hashes[id], nil
}

func TestStuckDetectorTransitions(t *testing.T) {
	src := &fakeHashes{}
	rec := &events.Recorder{}
	d := &StuckDetector{Source: src, Sink: rec, Threshold: 30 * time.Second}
	d.Track("t")
	src.set("t", "a")

	base := time.Unix(1000, 0)
	d.Poll(base)
	d.Poll(base.Add(10 * time.Second))
	assert.Empty(t, rec.Events())
	assert.False(t, d.IsStuck("t"))

	d.Poll(base.Add(30 * time.Second))
	stuck := rec.Named(events.TerminalStuck)
	require.Len(t, stuck, 1)
	assert.Equal(t, "t", stuck[0].TerminalID)
	assert.Equal(t, int64(30000), stuck[0].Payload["idle_ms"])
	assert.True(t, d.IsStuck("t"))

	// Reported once while the tail stays quiet.
	d.Poll(base.Add(90 * time.Second))
	assert.Len(t, rec.Named(events.TerminalStuck), 1)

	src.set("t", "b")
	d.Poll(base.Add(91 * time.Second))
	unstuck := rec.Named(events.TerminalUnstuck)
	require.Len(t, unstuck, 1)
	assert.False(t, d.IsStuck("t"))

	// The quiet period restarts from the change.
	d.Poll(base.Add(120 * time.Second))
	assert.Len(t, rec.Named(events.TerminalStuck), 1)
	d.Poll(base.Add(121 * time.Second))
	assert.Len(t, rec.Named(events.TerminalStuck), 2)
}

func TestStuckDetectorUntracksMissingTerminals(t *testing.T) {
	src := &fakeHashes{}
	d := &StuckDetector{Source: src, Threshold: time.Second}
	d.Track("gone")
	d.Track("flaky")
	src.fail("gone", notFound("gone"))
	src.fail("flaky", errors.New("temporary"))

	d.Poll(time.Now())
	assert.Equal(t, []string{"flaky"}, d.Tracked())

	d.Untrack("flaky")
	assert.Empty(t, d.Tracked())
}

func TestStuckDetectorRun(t *testing.T) {
	src := &fakeHashes{}
	src.set("t", "same")
	rec := &events.Recorder{}
	d := &StuckDetector{Source: src, Sink: rec, Interval: 5 * time.Millisecond, Threshold: 20 * time.Millisecond}
	d.Track("t")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(rec.Named(events.TerminalStuck)) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestStuckDetectorWithHost(t *testing.T) {
	h, _ := newTestHost(t)
	spawnCat(t, h, "quiet")

	now := time.Unix(0, 0)
	rec := &events.Recorder{}
	d := &StuckDetector{Source: h, Sink: rec, Threshold: time.Minute, TailLines: 5}
	d.Track("quiet")
	d.Poll(now)
	d.Poll(now.Add(time.Minute))
	require.Len(t, rec.Named(events.TerminalStuck), 1)

	require.NoError(t, h.Write("quiet", []byte("wake\n")))
	waitForOutput(t, h, "quiet", "wake")
	require.Eventually(t, func() bool {
		d.Poll(now.Add(2 * time.Minute))
		return len(rec.Named(events.TerminalUnstuck)) == 1
	}, waitFor, tick)

	require.NoError(t, h.Kill("quiet"))
	d.Poll(now.Add(3 * time.Minute))
	assert.Empty(t, d.Tracked())
}
