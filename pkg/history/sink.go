package history

import (
	"context"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"hudebug/pkg/events"
)

// RefreshInterval is how often the sink drains the queues.
const RefreshInterval = 50 * time.Millisecond

const (
	SerialMirrorFile = "serial.log"
	BridgeMirrorFile = "adb.log"
)

// UpdateFunc is called after a tick that added lines, with the new lines of
// that tick in arrival order.
type UpdateFunc func(added []events.LogLine)

// Sink drains both event queues on a fixed tick, appends to the per-origin
// histories and rewrites the mirror files. It is the single consumer of the
// queues.
type Sink struct {
	queues    *events.Queues
	histories map[events.Origin]*LineHistory
	mirrors   map[events.Origin]*Mirror
	clock     clockwork.Clock
	interval  time.Duration
	onUpdate  UpdateFunc
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithClock sets the clock driving the tick.
func WithClock(c clockwork.Clock) SinkOption {
	return func(s *Sink) { s.clock = c }
}

// WithInterval sets the tick interval.
func WithInterval(d time.Duration) SinkOption {
	return func(s *Sink) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithMirrors mirrors both origins into logDir on fs.
func WithMirrors(fs afero.Fs, logDir string) SinkOption {
	return func(s *Sink) {
		s.mirrors[events.OriginSerial] = NewMirror(fs, filepath.Join(logDir, SerialMirrorFile), MirrorLines)
		s.mirrors[events.OriginBridge] = NewMirror(fs, filepath.Join(logDir, BridgeMirrorFile), MirrorLines)
	}
}

// WithUpdateFunc registers the callback run after each tick that added lines.
func WithUpdateFunc(fn UpdateFunc) SinkOption {
	return func(s *Sink) { s.onUpdate = fn }
}

// WithMaxLines bounds each in-memory history.
func WithMaxLines(n int) SinkOption {
	return func(s *Sink) {
		for origin := range s.histories {
			s.histories[origin] = NewLineHistory(n)
		}
	}
}

// NewSink creates a sink over queues.
func NewSink(queues *events.Queues, opts ...SinkOption) *Sink {
	s := &Sink{
		queues: queues,
		histories: map[events.Origin]*LineHistory{
			events.OriginSerial: NewLineHistory(DefaultMaxLines),
			events.OriginBridge: NewLineHistory(DefaultMaxLines),
		},
		mirrors:  make(map[events.Origin]*Mirror),
		clock:    clockwork.NewRealClock(),
		interval: RefreshInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// History returns the in-memory history of origin.
func (s *Sink) History(origin events.Origin) *LineHistory {
	return s.histories[origin]
}

// Tick drains both queues once. Mirrors of origins that received lines are
// rewritten. It returns the lines added.
func (s *Sink) Tick() []events.LogLine {
	var added []events.LogLine

	for _, origin := range []events.Origin{events.OriginSerial, events.OriginBridge} {
		lines := s.queues.For(origin).Drain()
		if len(lines) == 0 {
			continue
		}

		h := s.histories[origin]
		for _, line := range lines {
			h.Append(line.Text)
		}
		added = append(added, lines...)

		if m, ok := s.mirrors[origin]; ok {
			if err := m.Write(h); err != nil {
				log.Warn().Err(err).Str("path", m.Path()).Msg("log mirror not updated")
			}
		}
	}

	if len(added) > 0 && s.onUpdate != nil {
		s.onUpdate(added)
	}
	return added
}

// Run ticks until ctx is done, then drains one last time.
func (s *Sink) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Tick()
			return
		case <-ticker.Chan():
			s.Tick()
		}
	}
}
