package serial

import (
	"bytes"
	"errors"
	"sync"
	"time"

	"go.bug.st/serial"
)

var (
	errFakeClosed = errors.New("port has been closed")
	errNoSuchPort = errors.New("no such file or directory")
)

// fakePort is an in-memory Port. Read honours the read timeout so the
// reader loop polls the way it does against real hardware.
type fakePort struct {
	name     string
	incoming chan []byte
	failures chan error
	closed   chan struct{}

	mu      sync.Mutex
	written bytes.Buffer
	timeout time.Duration
	once    sync.Once
}

func newFakePort(name string) *fakePort {
	return &fakePort{
		name:     name,
		incoming: make(chan []byte, 64),
		failures: make(chan error, 1),
		closed:   make(chan struct{}),
		timeout:  5 * time.Millisecond,
	}
}

func (p *fakePort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	timeout := p.timeout
	p.mu.Unlock()

	select {
	case <-p.closed:
		return 0, errFakeClosed
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case data := <-p.incoming:
		return copy(buf, data), nil
	case err := <-p.failures:
		return 0, err
	case <-p.closed:
		return 0, errFakeClosed
	case <-timer.C:
		return 0, nil
	}
}

func (p *fakePort) Write(data []byte) (int, error) {
	select {
	case <-p.closed:
		return 0, errFakeClosed
	default:
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(data)
}

func (p *fakePort) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = t
	return nil
}

func (p *fakePort) Written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.written.Bytes()...)
}

func (p *fakePort) IsClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

// fakeFactory hands out fake ports for the names it knows.
type fakeFactory struct {
	mu     sync.Mutex
	ports  map[string]*fakePort
	opened []string
}

func newFakeFactory(ports ...*fakePort) *fakeFactory {
	f := &fakeFactory{ports: make(map[string]*fakePort)}
	for _, p := range ports {
		f.ports[p.name] = p
	}
	return f
}

func (f *fakeFactory) Open(name string, _ *serial.Mode) (Port, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.ports[name]
	if !ok {
		return nil, errNoSuchPort
	}
	f.opened = append(f.opened, name)
	return p, nil
}
