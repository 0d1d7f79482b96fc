package bridge

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"runtime"
)

// Result is the captured outcome of one command.
type Result struct {
	// Output is combined stdout and stderr.
	Output   string
	ExitCode int
}

// Success reports whether the command exited with status zero.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Executor runs host processes. A non-zero exit is reported through
// Result.ExitCode, not as an error; the error is for processes that could
// not be started at all.
type Executor interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecExecutor runs processes with os/exec.
type ExecExecutor struct{}

// Run starts name with args and waits for it to finish.
func (ExecExecutor) Run(ctx context.Context, name string, args ...string) (Result, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	res := Result{Output: out.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		return res, err
	}
	return res, nil
}

// shellCommand returns the host shell invocation for a command line.
func shellCommand(line string) (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C", line}
	}
	return "sh", []string{"-c", line}
}
