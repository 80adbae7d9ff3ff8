package terminal

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/hinshun/vt10x"
)

// Screen replays terminal output into a virtual terminal so the rendered
// rows can be inspected without a client attached.
type Screen struct {
	mu      sync.Mutex
	vt      vt10x.Terminal
	pending []byte
}

func NewScreen(size Size) *Screen {
	size = size.orDefault(DefaultSize)
	return &Screen{vt: vt10x.New(vt10x.WithSize(size.Cols, size.Rows))}
}

// Write feeds raw output to the emulator. A multi-byte rune split across two
// writes is held back until the rest of it arrives.
func (s *Screen) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := p
	if len(s.pending) > 0 {
		data = append(s.pending, p...)
		s.pending = nil
	}
	if cut := incompleteRuneTail(data); cut > 0 {
		s.pending = append([]byte(nil), data[len(data)-cut:]...)
		data = data[:len(data)-cut]
	}
	if len(data) > 0 {
		if _, err := s.vt.Write(data); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (s *Screen) Resize(size Size) {
	if size.IsZero() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vt.Resize(size.Cols, size.Rows)
}

func (s *Screen) Size() Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	cols, rows := s.vt.Size()
	return Size{Cols: cols, Rows: rows}
}

// Cursor returns the zero-based cursor column and row.
func (s *Screen) Cursor() (col, row int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.vt.Cursor()
	return c.X, c.Y
}

// Lines returns every visible row with trailing blanks trimmed.
func (s *Screen) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linesLocked()
}

// TailLines returns the last n meaningful rows: everything up to the lower of
// the cursor row and the last non-blank row.
func (s *Screen) TailLines(n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.linesLocked()
	if n <= 0 || len(lines) == 0 {
		return nil
	}
	last := s.vt.Cursor().Y
	for y := len(lines) - 1; y > last; y-- {
		if lines[y] != "" {
			last = y
			break
		}
	}
	if last >= len(lines) {
		last = len(lines) - 1
	}
	start := last - n + 1
	if start < 0 {
		start = 0
	}
	return append([]string(nil), lines[start:last+1]...)
}

// HashTailLines is the hex sha256 of TailLines(n) joined with newlines.
func (s *Screen) HashTailLines(n int) string {
	sum := sha256.Sum256([]byte(strings.Join(s.TailLines(n), "\n")))
	return hex.EncodeToString(sum[:])
}

func (s *Screen) linesLocked() []string {
	cols, rows := s.vt.Size()
	lines := make([]string, rows)
	var sb strings.Builder
	for y := 0; y < rows; y++ {
		sb.Reset()
		for x := 0; x < cols; x++ {
			ch := s.vt.Cell(x, y).Char
			if ch == 0 {
				ch = ' '
			}
			sb.WriteRune(ch)
		}
		lines[y] = strings.TrimRight(sb.String(), " ")
	}
	return lines
}

// incompleteRuneTail returns how many trailing bytes of p start a UTF-8
// sequence that is not yet complete.
func incompleteRuneTail(p []byte) int {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(p); i++ {
		b := p[len(p)-i]
		if b < utf8.RuneSelf {
			return 0
		}
		if utf8.RuneStart(b) {
			if utf8.FullRune(p[len(p)-i:]) {
				return 0
			}
			return i
		}
	}
	return 0
}
