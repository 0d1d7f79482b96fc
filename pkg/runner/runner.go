// Package runner executes multi-line command scripts one command at a time.
package runner

import (
	"context"
	"fmt"
	"strings"
)

// CommentPrefix starts a line the runner skips.
const CommentPrefix = "#"

// DispatchFunc executes a single command.
type DispatchFunc func(ctx context.Context, command string) error

// FailureFunc is told about every command that failed.
type FailureFunc func(command string, err error)

// Summary counts what a run did.
type Summary struct {
	Dispatched int
	Failed     int
	// Canceled is set when ctx ended before every command ran.
	Canceled bool
}

// lineBreaks normalizes "\r\n" and a lone "\r" to "\n".
var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Commands splits script into its runnable commands: lines are trimmed,
// blank lines and comment lines are dropped.
func Commands(script string) []string {
	var cmds []string
	for _, line := range strings.Split(lineBreaks.Replace(script), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, CommentPrefix) {
			continue
		}
		cmds = append(cmds, line)
	}
	return cmds
}

// Runner dispatches the commands of a script sequentially. A failing
// command is reported and the run moves on to the next one.
type Runner struct {
	onFailure FailureFunc
}

// New creates a runner that reports failures to onFailure.
func New(onFailure FailureFunc) *Runner {
	return &Runner{onFailure: onFailure}
}

// Run dispatches every command of script in order, never concurrently.
func (r *Runner) Run(ctx context.Context, script string, dispatch DispatchFunc) Summary {
	var sum Summary
	for _, cmd := range Commands(script) {
		if ctx.Err() != nil {
			sum.Canceled = true
			break
		}

		sum.Dispatched++
		if err := safeDispatch(ctx, dispatch, cmd); err != nil {
			sum.Failed++
			if r.onFailure != nil {
				r.onFailure(cmd, err)
			}
		}
	}
	return sum
}

// safeDispatch turns a panicking command into an error.
func safeDispatch(ctx context.Context, dispatch DispatchFunc, cmd string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return dispatch(ctx, cmd)
}
