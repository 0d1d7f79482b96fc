// Package history keeps the log feed of each origin and mirrors it to disk.
package history

import (
	"strings"

	"hudebug/pkg/syncutil"
)

const (
	// DefaultMaxLines is how many lines each origin keeps in memory.
	DefaultMaxLines = 5000
	// MirrorLines is how many of the newest lines a mirror file holds.
	MirrorLines = 500
)

// LineHistory is a bounded, append-only list of log lines. When full the
// oldest lines are discarded.
type LineHistory struct {
	mu       syncutil.RWMutex
	lines    []string
	maxLines int
	total    int
}

// NewLineHistory creates a history retaining at most maxLines lines.
func NewLineHistory(maxLines int) *LineHistory {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	return &LineHistory{maxLines: maxLines}
}

// Append adds lines, newest last. A line containing newlines (multi-line
// command output) is stored as one entry per line.
func (h *LineHistory) Append(lines ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, line := range lines {
		for _, l := range strings.Split(line, "\n") {
			h.lines = append(h.lines, l)
			h.total++
		}
	}

	if over := len(h.lines) - h.maxLines; over > 0 {
		// Shift into a fresh slice so dropped lines can be collected.
		h.lines = append([]string(nil), h.lines[over:]...)
	}
}

// Tail returns a copy of the newest n lines, oldest first.
func (h *LineHistory) Tail(n int) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || n > len(h.lines) {
		n = len(h.lines)
	}
	return append([]string(nil), h.lines[len(h.lines)-n:]...)
}

// Len returns the number of lines held in memory.
func (h *LineHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.lines)
}

// Total returns the number of lines ever appended.
func (h *LineHistory) Total() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

// Clear drops every line.
func (h *LineHistory) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines = nil
}
