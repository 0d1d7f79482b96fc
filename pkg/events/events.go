// Package events carries log lines from background workers to the UI loop.
//
// Each origin owns one bounded queue. Producers never block: when a queue is
// full the line is dropped and counted, so a runaway producer cannot grow
// memory without bound. A single consumer drains the queue on its own tick.
package events

import (
	"fmt"
	"sync/atomic"
)

// DefaultCapacity is the number of lines a queue buffers between drains.
const DefaultCapacity = 4096

// Origin tags which subsystem produced a line.
type Origin int

const (
	OriginSerial Origin = iota
	OriginBridge
)

// String returns the string representation of Origin
func (o Origin) String() string {
	switch o {
	case OriginSerial:
		return "serial"
	case OriginBridge:
		return "bridge"
	default:
		return "unknown"
	}
}

// LogLine is one immutable entry of the log feed.
type LogLine struct {
	Origin Origin
	Text   string
}

// Queue is a multi-producer, single-consumer FIFO of log lines.
type Queue struct {
	ch      chan LogLine
	origin  Origin
	dropped atomic.Uint64
}

// NewQueue creates a queue for origin holding at most capacity lines.
func NewQueue(origin Origin, capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		ch:     make(chan LogLine, capacity),
		origin: origin,
	}
}

// Origin returns the origin every line of this queue carries.
func (q *Queue) Origin() Origin {
	return q.origin
}

// Put enqueues text. It reports false if the queue was full and the line dropped.
func (q *Queue) Put(text string) bool {
	select {
	case q.ch <- LogLine{Origin: q.origin, Text: text}:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Putf formats and enqueues a line.
func (q *Queue) Putf(format string, args ...any) bool {
	return q.Put(fmt.Sprintf(format, args...))
}

// Drain returns every line queued so far without blocking.
func (q *Queue) Drain() []LogLine {
	var lines []LogLine
	for {
		select {
		case line := <-q.ch:
			lines = append(lines, line)
		default:
			return lines
		}
	}
}

// Len returns the number of lines waiting to be drained.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Dropped returns how many lines were discarded because the queue was full.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Queues groups the two per-origin queues of a debugging session.
type Queues struct {
	Serial *Queue
	Bridge *Queue
}

// NewQueues creates both origin queues with the given capacity.
func NewQueues(capacity int) *Queues {
	return &Queues{
		Serial: NewQueue(OriginSerial, capacity),
		Bridge: NewQueue(OriginBridge, capacity),
	}
}

// For returns the queue of origin.
func (qs *Queues) For(origin Origin) *Queue {
	if origin == OriginBridge {
		return qs.Bridge
	}
	return qs.Serial
}
