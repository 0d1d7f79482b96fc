package serial

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding/unicode"

	"hudebug/pkg/events"
	"hudebug/pkg/syncutil"
)

// InterruptByte asks the remote console to abort its foreground command (Ctrl+C).
const InterruptByte = 0x03

const (
	readBufferSize = 4096
	// maxDirectRead caps a direct read performed while the reader is dead.
	maxDirectRead = 64 * 1024
)

// Session owns the single serial console connection. Connect, Disconnect
// and Write are serialized by one mutex so a reconnect can never race an
// in-flight write. While open, one reader goroutine frames incoming bytes
// into lines and puts them on the serial queue.
type Session struct {
	factory      PortFactory
	queue        *events.Queue
	clock        clockwork.Clock
	pollInterval time.Duration
	maxPending   int

	mu     syncutil.Mutex
	port   Port
	config SerialConfig
	state  State
	stopCh chan struct{}
	doneCh chan struct{}

	reading atomic.Bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithPortFactory replaces the function used to open ports.
func WithPortFactory(f PortFactory) SessionOption {
	return func(s *Session) {
		s.factory = f
	}
}

// WithPollInterval sets the read timeout of each reader poll.
func WithPollInterval(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithClock sets the clock used for settle waits.
func WithClock(c clockwork.Clock) SessionOption {
	return func(s *Session) {
		s.clock = c
	}
}

// WithMaxPending bounds the framer's retained segment.
func WithMaxPending(n int) SessionOption {
	return func(s *Session) {
		s.maxPending = n
	}
}

// NewSession creates a closed session that reports lines to queue.
func NewSession(queue *events.Queue, opts ...SessionOption) *Session {
	s := &Session{
		factory:      DefaultPortFactory,
		queue:        queue,
		clock:        clockwork.NewRealClock(),
		pollInterval: DefaultPollInterval,
		state:        StateClosed,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect opens port at baud, closing any previous connection first. On
// failure the session is left closed.
func (s *Session) Connect(port string, baud int) error {
	cfg := DefaultConfig()
	cfg.Port = port
	cfg.BaudRate = baud

	if err := cfg.Validate(); err != nil {
		return NewSerialError(OpConnect, port, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.closeLocked(); err != nil {
		log.Warn().Err(err).Msg("closing previous serial connection")
	}

	p, err := s.factory(cfg.Port, cfg.Mode())
	if err != nil {
		return NewSerialError(OpConnect, port, err)
	}

	if err := p.SetReadTimeout(s.pollInterval); err != nil {
		_ = p.Close()
		return NewSerialError(OpConnect, port, fmt.Errorf("failed to set read timeout: %w", err))
	}

	s.port = p
	s.config = cfg
	s.state = StateOpen
	s.startReaderLocked()

	log.Info().Str("port", port).Int("baud", baud).Msg("serial connected")
	return nil
}

// Disconnect stops the reader and closes the port. Calling it on a closed
// session is a no-op.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

// closeLocked must be called with s.mu held.
func (s *Session) closeLocked() error {
	if s.stopCh != nil {
		close(s.stopCh)
		s.stopCh = nil
	}

	var err error
	if s.port != nil {
		// Closing the handle unblocks a reader parked in Read.
		if cerr := s.port.Close(); cerr != nil {
			err = NewSerialError(OpClose, s.config.Port, cerr)
		}
		s.port = nil
	}

	if s.doneCh != nil {
		<-s.doneCh
		s.doneCh = nil
	}

	if s.state == StateOpen {
		log.Info().Str("port", s.config.Port).Msg("serial disconnected")
	}
	s.state = StateClosed
	return err
}

// startReaderLocked starts the reader unless one is already running.
func (s *Session) startReaderLocked() {
	if s.reading.Load() {
		return
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.reading.Store(true)
	go s.readLoop(s.port, s.config.Port, s.stopCh, s.doneCh)
}

// readLoop is the only goroutine that touches its framer.
func (s *Session) readLoop(port Port, name string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer s.reading.Store(false)

	framer := NewLineFramer(s.maxPending)
	buf := make([]byte, readBufferSize)

	for {
		select {
		case <-stop:
			return
		default:
		}

		// Read blocks for at most the poll interval set at connect time.
		n, err := port.Read(buf)
		if err != nil {
			select {
			case <-stop:
			default:
				log.Warn().Err(err).Str("port", name).Msg("serial reader stopped")
			}
			return
		}

		for _, line := range framer.Feed(buf[:n]) {
			s.queue.Put(strings.TrimRight(line, "\r"))
		}
	}
}

// Write sends data to the console. It fails with ErrWrite when the session
// is not open. There is no retry.
func (s *Session) Write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpen || s.port == nil {
		return NewSerialError(OpWrite, s.config.Port, ErrNotOpen)
	}

	n, err := s.port.Write(data)
	if err != nil {
		return NewSerialError(OpWrite, s.config.Port, err)
	}
	if n != len(data) {
		return NewSerialError(OpWrite, s.config.Port, fmt.Errorf("short write: %d of %d bytes", n, len(data)))
	}
	return nil
}

// WriteLine sends cmd terminated by a newline.
func (s *Session) WriteLine(cmd string) error {
	return s.Write([]byte(cmd + "\n"))
}

// SendInterrupt writes the interrupt byte and reports the outcome as a
// status line on the serial queue.
func (s *Session) SendInterrupt() {
	err := s.Write([]byte{InterruptByte})
	switch {
	case err == nil:
		s.queue.Put("[✓] Interrupt sent (Ctrl+C)")
	case errors.Is(err, ErrNotOpen):
		s.queue.Put("[✗] Serial not connected, cannot send interrupt")
	default:
		s.queue.Putf("[✗] Failed to send interrupt: %v", err)
	}
}

// Exchange writes cmd, waits settle and then collects the response. While
// the reader is alive the response reaches the queue line by line and
// Exchange returns an empty string; otherwise whatever is available is read
// directly and returned.
func (s *Session) Exchange(cmd string, settle time.Duration) (string, error) {
	if err := s.WriteLine(cmd); err != nil {
		return "", err
	}

	if settle > 0 {
		s.clock.Sleep(settle)
	}

	if s.ReaderRunning() {
		return "", nil
	}
	return s.readAvailable()
}

// readAvailable drains the port until a poll returns nothing.
func (s *Session) readAvailable() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpen || s.port == nil {
		return "", NewSerialError(OpRead, s.config.Port, ErrNotOpen)
	}

	var out []byte
	buf := make([]byte, readBufferSize)
	for len(out) < maxDirectRead {
		n, err := s.port.Read(buf)
		if err != nil {
			return "", NewSerialError(OpRead, s.config.Port, err)
		}
		if n == 0 {
			break
		}
		out = append(out, buf[:n]...)
	}

	return strings.TrimSpace(decodeText(unicode.UTF8.NewDecoder(), out)), nil
}

// State returns the connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsOpen reports whether the session holds an open port.
func (s *Session) IsOpen() bool {
	return s.State() == StateOpen
}

// ReaderRunning reports whether the background reader is alive.
func (s *Session) ReaderRunning() bool {
	return s.reading.Load()
}

// Config returns the configuration of the current or last connection.
func (s *Session) Config() SerialConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}
