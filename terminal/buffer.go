package terminal

import (
	"fmt"
	"sync"
)

// SeqBuffer stores terminal output addressed by absolute byte offset.
// Sequence numbers start at zero for every terminal lifetime. Bytes below the
// low-water mark have been acknowledged or evicted and can no longer be read.
type SeqBuffer struct {
	mu    sync.RWMutex
	data  []byte
	off   int
	low   uint64
	seq   uint64
	limit int
}

// NewSeqBuffer returns a buffer retaining at most limit bytes. A limit of zero
// or less keeps everything until it is acknowledged.
func NewSeqBuffer(limit int) *SeqBuffer {
	return &SeqBuffer{limit: limit}
}

// Append stores p and returns the new high-water mark.
func (b *SeqBuffer) Append(p []byte) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(p) == 0 {
		return b.seq
	}
	b.data = append(b.data, p...)
	b.seq += uint64(len(p))
	if b.limit > 0 {
		if over := len(b.data) - b.off - b.limit; over > 0 {
			b.dropLocked(over)
		}
	}
	return b.seq
}

// Since returns every retained byte from offset from up to the high-water mark.
func (b *SeqBuffer) Since(from uint64) Chunk {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c := Chunk{Seq: b.seq, LowWater: b.low}
	if from < b.low || from > b.seq {
		c.Truncated = true
		return c
	}
	start := b.off + int(from-b.low)
	c.Data = append([]byte(nil), b.data[start:]...)
	return c
}

// Ack releases every byte below upTo. The low-water mark never moves
// backwards, and acknowledging past the high-water mark is rejected.
func (b *SeqBuffer) Ack(upTo uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if upTo > b.seq {
		return fmt.Errorf("ack %d beyond high-water mark %d", upTo, b.seq)
	}
	if upTo <= b.low {
		return nil
	}
	b.dropLocked(int(upTo - b.low))
	return nil
}

// Seq returns the high-water mark.
func (b *SeqBuffer) Seq() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.seq
}

// LowWater returns the oldest retained sequence number.
func (b *SeqBuffer) LowWater() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.low
}

// Len returns the number of retained bytes.
func (b *SeqBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data) - b.off
}

func (b *SeqBuffer) dropLocked(n int) {
	b.off += n
	b.low += uint64(n)
	if b.off == len(b.data) {
		b.data = b.data[:0]
		b.off = 0
		return
	}
	// Compact once the dead prefix dominates the backing array.
	if b.off > len(b.data)/2 {
		b.data = append(b.data[:0:0], b.data[b.off:]...)
		b.off = 0
	}
}
