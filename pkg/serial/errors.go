package serial

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection matches every failure to open a port.
	ErrConnection = errors.New("serial connection failed")
	// ErrWrite matches every failure to write to the console.
	ErrWrite = errors.New("serial write failed")
	// ErrNotOpen is the cause of a write attempted while the session is closed.
	ErrNotOpen = errors.New("serial port is not open")
)

// Operation names the session call that failed.
type Operation string

const (
	OpConnect Operation = "connect"
	OpWrite   Operation = "write"
	OpRead    Operation = "read"
	OpClose   Operation = "close"
)

// SerialError represents a serial port specific error
type SerialError struct {
	Operation Operation
	Port      string
	Cause     error
}

// Error implements the error interface
func (e *SerialError) Error() string {
	where := ""
	if e.Port != "" {
		where = " on " + e.Port
	}
	if e.Cause != nil {
		return fmt.Sprintf("serial %s%s: %v", e.Operation, where, e.Cause)
	}
	return fmt.Sprintf("serial %s%s failed", e.Operation, where)
}

// Unwrap returns the underlying cause.
func (e *SerialError) Unwrap() error {
	return e.Cause
}

// Is maps the operation onto the package sentinels.
func (e *SerialError) Is(target error) bool {
	switch target {
	case ErrConnection:
		return e.Operation == OpConnect
	case ErrWrite:
		return e.Operation == OpWrite
	default:
		return false
	}
}

// NewSerialError creates a new serial error
func NewSerialError(op Operation, port string, cause error) *SerialError {
	return &SerialError{
		Operation: op,
		Port:      port,
		Cause:     cause,
	}
}

// State is the connection state of a Session.
type State int

const (
	StateClosed State = iota
	StateOpen
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
