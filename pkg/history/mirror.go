package history

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Mirror rewrites a plain-text file with the newest lines of a history.
type Mirror struct {
	fs    afero.Fs
	path  string
	lines int
}

// NewMirror creates a mirror of the newest lines lines into path.
func NewMirror(fs afero.Fs, path string, lines int) *Mirror {
	if lines <= 0 {
		lines = MirrorLines
	}
	return &Mirror{fs: fs, path: path, lines: lines}
}

// Path returns the mirror file path.
func (m *Mirror) Path() string {
	return m.path
}

// Write replaces the file content with the tail of h, newest line last.
func (m *Mirror) Write(h *LineHistory) error {
	content := strings.Join(h.Tail(m.lines), "\n")

	if dir := filepath.Dir(m.path); dir != "." {
		if err := m.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	if err := afero.WriteFile(m.fs, m.path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write log mirror: %w", err)
	}
	return nil
}
