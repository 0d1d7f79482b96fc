// Package serial owns the head unit's serial console: port configuration,
// line framing of the raw byte stream and the connected session.
package serial

import (
	"fmt"
	"runtime"
	"slices"
	"time"

	"go.bug.st/serial"
)

// DefaultPollInterval bounds how long the reader blocks in a single read.
const DefaultPollInterval = 10 * time.Millisecond

// SerialConfig defines the configuration for a serial console connection
type SerialConfig struct {
	Port     string
	BaudRate int
	DataBits int
	StopBits int
	Parity   string
}

// Validate checks if the serial configuration is valid
func (c SerialConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}

	// Any positive rate is passed on; the port driver rejects what it cannot set.
	if c.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate: %d", c.BaudRate)
	}

	if c.DataBits < 5 || c.DataBits > 8 {
		return fmt.Errorf("data bits must be between 5 and 8, got: %d", c.DataBits)
	}

	if c.StopBits < 1 || c.StopBits > 2 {
		return fmt.Errorf("stop bits must be 1 or 2, got: %d", c.StopBits)
	}

	if !slices.Contains([]string{"none", "odd", "even", "mark", "space"}, c.Parity) {
		return fmt.Errorf("invalid parity: %s", c.Parity)
	}

	return nil
}

// Mode converts the configuration to a go.bug.st/serial mode.
func (c SerialConfig) Mode() *serial.Mode {
	return &serial.Mode{
		BaudRate: c.BaudRate,
		DataBits: c.DataBits,
		StopBits: convertStopBits(c.StopBits),
		Parity:   convertParity(c.Parity),
	}
}

// DefaultPort returns the console port most boards enumerate as on this OS.
func DefaultPort() string {
	if runtime.GOOS == "windows" {
		return "COM3"
	}
	return "/dev/ttyUSB0"
}

// DefaultConfig returns a default 8N1 115200 configuration
func DefaultConfig() SerialConfig {
	return SerialConfig{
		Port:     DefaultPort(),
		BaudRate: 115200,
		DataBits: 8,
		StopBits: 1,
		Parity:   "none",
	}
}

// convertStopBits converts our stop bits format to go.bug.st/serial format
func convertStopBits(stopBits int) serial.StopBits {
	if stopBits == 2 {
		return serial.TwoStopBits
	}
	return serial.OneStopBit
}

// convertParity converts our parity format to go.bug.st/serial format
func convertParity(parity string) serial.Parity {
	switch parity {
	case "odd":
		return serial.OddParity
	case "even":
		return serial.EvenParity
	case "mark":
		return serial.MarkParity
	case "space":
		return serial.SpaceParity
	default:
		return serial.NoParity
	}
}
