// Package bridge drives the device bridge (adb): remote shell commands and
// file push against the single attached device, plus a host shell escape
// for tool-style command lines.
package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	// DefaultADB is the bridge binary looked up on PATH.
	DefaultADB = "adb"
	// ToolPrefix marks a command line that runs on the host shell.
	ToolPrefix = "adb "
)

var (
	errNoDevice    = errors.New("no device attached")
	errManyDevices = errors.New("more than one device attached")
)

// Client runs commands through adb.
type Client struct {
	adb  string
	exec Executor
	fs   afero.Fs
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithADB sets the adb binary path.
func WithADB(path string) ClientOption {
	return func(c *Client) {
		if path != "" {
			c.adb = path
		}
	}
}

// WithExecutor replaces the process runner.
func WithExecutor(e Executor) ClientOption {
	return func(c *Client) { c.exec = e }
}

// WithFs sets the filesystem push sources are checked on.
func WithFs(fs afero.Fs) ClientOption {
	return func(c *Client) { c.fs = fs }
}

// NewClient creates a bridge client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		adb:  DefaultADB,
		exec: ExecExecutor{},
		fs:   afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsToolCommand reports whether line runs on the host shell.
func IsToolCommand(line string) bool {
	return strings.HasPrefix(line, ToolPrefix)
}

// Device returns the serial of the single device in the "device" state.
func (c *Client) Device(ctx context.Context) (string, error) {
	res, err := c.exec.Run(ctx, c.adb, "devices")
	if err != nil {
		return "", &DeviceError{Op: "devices", Cause: err}
	}
	if !res.Success() {
		return "", &DeviceError{Op: "devices", Cause: fmt.Errorf("exit status %d: %s", res.ExitCode, strings.TrimSpace(res.Output))}
	}

	serials := parseDevices(res.Output)
	switch len(serials) {
	case 0:
		return "", &DeviceError{Op: "devices", Cause: errNoDevice}
	case 1:
		return serials[0], nil
	default:
		return "", &DeviceError{Op: "devices", Cause: fmt.Errorf("%w: %s", errManyDevices, strings.Join(serials, ", "))}
	}
}

// parseDevices extracts ready device serials from `adb devices` output.
func parseDevices(output string) []string {
	var serials []string
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || fields[0] == "List" || strings.HasPrefix(fields[0], "*") {
			continue
		}
		if fields[1] == "device" {
			serials = append(serials, fields[0])
		}
	}
	return serials
}

// Shell runs cmd on device. The remote exit status is kept in the result.
func (c *Client) Shell(ctx context.Context, device, cmd string) (Result, error) {
	res, err := c.exec.Run(ctx, c.adb, "-s", device, "shell", cmd)
	if err != nil {
		return res, &DeviceError{Op: "shell", Cause: err}
	}
	return res, nil
}

// HostShell runs line on the host shell. A non-zero exit is not an error.
func (c *Client) HostShell(ctx context.Context, line string) (Result, error) {
	name, args := shellCommand(line)
	res, err := c.exec.Run(ctx, name, args...)
	if err != nil {
		return res, fmt.Errorf("failed to run host command: %w", err)
	}
	return res, nil
}

// Exec dispatches one command line: tool lines go to the host shell, the
// rest to the device shell.
func (c *Client) Exec(ctx context.Context, device, line string) (Result, error) {
	if IsToolCommand(line) {
		return c.HostShell(ctx, line)
	}
	return c.Shell(ctx, device, line)
}

// Push copies local to remote on device. The transfer is not attempted when
// local is not a regular file.
func (c *Client) Push(ctx context.Context, device, local, remote string) error {
	info, err := c.fs.Stat(local)
	if err != nil || !info.Mode().IsRegular() {
		return &FileNotFoundError{Path: local}
	}

	res, err := c.exec.Run(ctx, c.adb, "-s", device, "push", local, remote)
	if err != nil {
		return &DeviceError{Op: "push", Cause: err}
	}
	if !res.Success() {
		return &DeviceError{Op: "push", Cause: fmt.Errorf("exit status %d: %s", res.ExitCode, strings.TrimSpace(res.Output))}
	}

	log.Debug().Str("device", device).Str("local", local).Str("remote", remote).Msg("pushed file")
	return nil
}
