package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrDevice matches a missing device or a failed bridge call.
	ErrDevice = errors.New("device bridge error")
	// ErrFileNotFound matches a push whose local source is not a regular file.
	ErrFileNotFound = errors.New("file not found")
)

// DeviceError describes a bridge failure.
type DeviceError struct {
	Op    string
	Cause error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("adb %s: %v", e.Op, e.Cause)
}

func (e *DeviceError) Unwrap() error { return e.Cause }

func (e *DeviceError) Is(target error) bool { return target == ErrDevice }

// FileNotFoundError names the missing push source.
type FileNotFoundError struct {
	Path string
}

func (e *FileNotFoundError) Error() string {
	return "file not found: " + e.Path
}

func (e *FileNotFoundError) Is(target error) bool { return target == ErrFileNotFound }
