package serial

import (
	"bytes"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// LineFramer turns a raw console byte stream into complete lines. The
// trailing unterminated segment is kept across calls. A framer belongs to a
// single goroutine.
type LineFramer struct {
	pending    []byte
	maxPending int
	decoder    *encoding.Decoder
}

// NewLineFramer creates a framer. A positive maxPending flushes the retained
// segment as a line once it grows beyond that many bytes; zero keeps it
// unbounded.
func NewLineFramer(maxPending int) *LineFramer {
	return &LineFramer{
		maxPending: maxPending,
		decoder:    unicode.UTF8.NewDecoder(),
	}
}

// Feed appends data and returns every line it completes, in order.
func (f *LineFramer) Feed(data []byte) []string {
	f.pending = append(f.pending, data...)

	pieces := bytes.Split(f.pending, []byte{'\n'})
	last := len(pieces) - 1

	lines := make([]string, 0, last)
	for _, piece := range pieces[:last] {
		lines = append(lines, f.decode(piece))
	}

	// Copy so the retained segment does not pin the whole buffer.
	f.pending = append([]byte(nil), pieces[last]...)

	if f.maxPending > 0 && len(f.pending) > f.maxPending {
		lines = append(lines, f.decode(f.pending))
		f.pending = nil
	}

	return lines
}

// Pending returns the number of bytes retained for the next line.
func (f *LineFramer) Pending() int {
	return len(f.pending)
}

// Reset drops the retained segment.
func (f *LineFramer) Reset() {
	f.pending = nil
}

func (f *LineFramer) decode(b []byte) string {
	return decodeText(f.decoder, b)
}

// decodeText decodes UTF-8, replacing invalid sequences with U+FFFD.
func decodeText(d *encoding.Decoder, b []byte) string {
	out, err := d.Bytes(b)
	if err != nil {
		return string(bytes.ToValidUTF8(b, []byte("�")))
	}
	return string(out)
}
