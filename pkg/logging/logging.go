// Package logging sets up the diagnostic log. Device output never goes
// here; it is shown in the panes and written to the mirror files.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// LogFile is the diagnostic log file name inside the log directory.
const LogFile = "hudebug.log"

// Options controls Init.
type Options struct {
	// Dir receives the rotated log file.
	Dir string
	// Console, when set, also receives human-readable log output.
	Console io.Writer
	// Verbose enables debug level.
	Verbose bool
}

// Init points the global zerolog logger at a rotated file in opts.Dir and
// returns the file writer so it can be closed on exit.
func Init(opts Options) (io.Closer, error) {
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}

	file := &lumberjack.Logger{
		Filename:   filepath.Join(dir, LogFile),
		MaxSize:    1,
		MaxBackups: 2,
	}

	writers := []io.Writer{file}
	if opts.Console != nil {
		writers = append(writers, zerolog.ConsoleWriter{Out: opts.Console, TimeFormat: "15:04:05"})
	}

	level := zerolog.InfoLevel
	if opts.Verbose {
		level = zerolog.DebugLevel
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().Timestamp().Caller().Logger()

	return file, nil
}
