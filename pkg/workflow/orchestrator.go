// Package workflow runs the six bring-up steps against the serial console
// and the device bridge. Every step runs its script through one executor
// parameterized by the step's Policy; every failure inside a step ends up
// as a status line on the serial or bridge queue.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hudebug/pkg/bridge"
	"hudebug/pkg/config"
	"hudebug/pkg/events"
	"hudebug/pkg/runner"
	"hudebug/pkg/syncutil"
)

var (
	// ErrUnknownStep is returned for a step number outside 1..6.
	ErrUnknownStep = errors.New("unknown step")
	// ErrStepRunning is returned when a step is triggered while it still runs.
	ErrStepRunning = errors.New("step is already running")
	// ErrNotConnected aborts a step that needs an open serial session.
	ErrNotConnected = errors.New("serial not connected")
	// ErrStepPanic is returned when a step crashed.
	ErrStepPanic = errors.New("step panicked")
)

// Console is the serial session as seen by the steps.
type Console interface {
	Connect(port string, baud int) error
	Disconnect() error
	Exchange(cmd string, settle time.Duration) (string, error)
	SendInterrupt()
	IsOpen() bool
}

// Bridge is the device-bridge client as seen by the steps.
type Bridge interface {
	Device(ctx context.Context) (string, error)
	Exec(ctx context.Context, device, line string) (bridge.Result, error)
	Push(ctx context.Context, device, local, remote string) error
}

// ExitStatusError reports a bridge command that exited non-zero.
type ExitStatusError struct {
	Command string
	Code    int
}

func (e *ExitStatusError) Error() string {
	return fmt.Sprintf("exit status %d: %s", e.Code, e.Command)
}

// Orchestrator owns the step executions of one application run.
type Orchestrator struct {
	console Console
	bridge  Bridge
	config  config.ConfigManager
	queues  *events.Queues
	clock   clockwork.Clock
	runID   string

	mu      syncutil.Mutex
	running map[Step]bool
	wg      sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock sets the clock used to time steps.
func WithClock(c clockwork.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithRunID overrides the generated run id.
func WithRunID(id string) Option {
	return func(o *Orchestrator) { o.runID = id }
}

// New creates an orchestrator.
func New(console Console, br Bridge, cfg config.ConfigManager, queues *events.Queues, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		console: console,
		bridge:  br,
		config:  cfg,
		queues:  queues,
		clock:   clockwork.NewRealClock(),
		runID:   uuid.NewString(),
		running: make(map[Step]bool),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// logger is derived from the global logger on each use so it follows a
// logger installed after New.
func (o *Orchestrator) logger() *zerolog.Logger {
	l := log.With().Str("run_id", o.runID).Logger()
	return &l
}

// RunID identifies this orchestrator in the diagnostic log.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Trigger starts step in the background. A step that is still running is
// not started again; that is reported on its queue and Trigger returns false.
func (o *Orchestrator) Trigger(ctx context.Context, step Step) bool {
	if !o.acquire(step) {
		return false
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.release(step)
		_ = o.execute(ctx, step)
	}()
	return true
}

// Run executes step and waits for it. The returned error is non-nil only
// when the step was aborted; individual command failures are reported on
// the queues.
func (o *Orchestrator) Run(ctx context.Context, step Step) error {
	if !step.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownStep, int(step))
	}
	if !o.acquire(step) {
		return fmt.Errorf("%w: %d", ErrStepRunning, int(step))
	}
	defer o.release(step)
	return o.execute(ctx, step)
}

// Running reports whether step is in flight.
func (o *Orchestrator) Running(step Step) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running[step]
}

// Interruptible reports whether a running step accepts SendInterrupt.
func (o *Orchestrator) Interruptible() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for step, on := range o.running {
		if p, ok := PolicyFor(step); on && ok && p.Interruptible {
			return true
		}
	}
	return false
}

// Wait blocks until every triggered step has returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) acquire(step Step) bool {
	if !step.Valid() {
		o.queues.Serial.Putf("[✗] Unknown step %d", int(step))
		return false
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running[step] {
		o.queueFor(step).Putf("[⚠] Step %d is already running", int(step))
		return false
	}
	o.running[step] = true
	return true
}

func (o *Orchestrator) release(step Step) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.running, step)
}

func (o *Orchestrator) queueFor(step Step) *events.Queue {
	if p, _ := PolicyFor(step); p.Target == TargetBridge {
		return o.queues.Bridge
	}
	return o.queues.Serial
}

// execute runs one step, converting a panic into a status line.
func (o *Orchestrator) execute(ctx context.Context, step Step) (err error) {
	start := o.clock.Now()
	logger := o.logger().With().Int("step", int(step)).Logger()
	logger.Info().Str("name", step.String()).Msg("step started")

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("step crashed")
			o.queueFor(step).Putf("[✗] Step %d crashed: %v", int(step), r)
			err = fmt.Errorf("%w: %v", ErrStepPanic, r)
		}
		ev := logger.Info()
		if err != nil {
			ev = logger.Warn().Err(err)
		}
		ev.Dur("took", o.clock.Since(start)).Msg("step finished")
	}()

	if p, _ := PolicyFor(step); p.RequireOpen && !o.console.IsOpen() {
		o.queues.Serial.Put("[✗] Serial not connected")
		return ErrNotConnected
	}

	switch step {
	case StepConnect:
		return o.connectAndInit(ctx)
	case StepBridge, StepBridgeAgain:
		return o.bridgeCommands(ctx, step)
	case StepPushReboot:
		return o.pushAndReboot(ctx)
	case StepPostBootA, StepPostBootB:
		o.runScript(ctx, policies[step], o.config.Current().Script(int(step)), "")
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrUnknownStep, int(step))
	}
}

func (o *Orchestrator) persist() {
	if err := o.config.Save(); err != nil {
		o.logger().Warn().Err(err).Str("path", o.config.Path()).Msg("failed to save config")
	}
}

func (o *Orchestrator) connectAndInit(ctx context.Context) error {
	cfg := o.config.Current()
	o.persist()

	if err := o.console.Connect(cfg.SerialPort, cfg.SerialBaud); err != nil {
		o.queues.Serial.Putf("[✗] Serial connect failed: %v", err)
		return err
	}
	o.queues.Serial.Putf("[✓] Connected %s @ %d", cfg.SerialPort, cfg.SerialBaud)

	o.runScript(ctx, policies[StepConnect], cfg.Script(int(StepConnect)), "")
	return nil
}

func (o *Orchestrator) bridgeCommands(ctx context.Context, step Step) error {
	script := o.config.Current().Script(int(step))

	device, err := o.bridge.Device(ctx)
	if err != nil {
		o.queues.Bridge.Putf("[✗] Command failed: %v", err)
		return err
	}

	o.runScript(ctx, policies[step], script, device)
	return nil
}

func (o *Orchestrator) pushAndReboot(ctx context.Context) error {
	cfg := o.config.Current()
	o.persist()

	device, err := o.bridge.Device(ctx)
	if err != nil {
		o.queues.Bridge.Putf("[✗] ADB push failed: %v", err)
		return err
	}

	for _, pair := range cfg.FilePairs() {
		if pair.Local == "" || pair.Remote == "" {
			continue
		}
		o.push(ctx, device, pair)
	}

	o.runScript(ctx, policies[StepPushReboot], cfg.Script(int(StepPushReboot)), device)
	return nil
}

// push transfers one pair. A failure is reported and does not affect the
// other pair.
func (o *Orchestrator) push(ctx context.Context, device string, pair config.FilePair) {
	err := o.bridge.Push(ctx, device, pair.Local, pair.Remote)
	switch {
	case err == nil:
		o.queues.Bridge.Putf("[✓] Pushed: %s → %s", pair.Local, pair.Remote)
	case errors.Is(err, bridge.ErrFileNotFound):
		o.queues.Bridge.Putf("[⚠] File not found, skipping: %s", pair.Local)
	default:
		o.queues.Bridge.Putf("[✗] Push %s → %s failed: %v", pair.Local, pair.Remote, err)
	}
}

// runScript dispatches script one command at a time to the policy's target.
func (o *Orchestrator) runScript(ctx context.Context, p Policy, script, device string) runner.Summary {
	queue := o.queues.Serial
	dispatch := func(_ context.Context, cmd string) error {
		return o.serialCommand(p, cmd)
	}
	onFailure := func(cmd string, err error) {
		queue.Putf("[✗] Serial command '%s' failed: %v", cmd, err)
	}

	if p.Target == TargetBridge {
		queue = o.queues.Bridge
		dispatch = func(ctx context.Context, cmd string) error {
			return o.bridgeCommand(ctx, p, device, cmd)
		}
		onFailure = func(cmd string, err error) {
			var exitErr *ExitStatusError
			if errors.As(err, &exitErr) {
				queue.Putf("[✗] %v", exitErr)
				return
			}
			queue.Putf("[✗] Command '%s' failed: %v", cmd, err)
		}
	}

	sum := runner.New(onFailure).Run(ctx, script, dispatch)
	if sum.Canceled {
		queue.Put("[⚠] Script canceled")
	}
	return sum
}

func (o *Orchestrator) serialCommand(p Policy, cmd string) error {
	o.queues.Serial.Putf("$ %s", cmd)
	out, err := o.console.Exchange(cmd, p.Settle)
	if err != nil {
		return err
	}
	if out != "" {
		o.queues.Serial.Put(out)
	}
	return nil
}

func (o *Orchestrator) bridgeCommand(ctx context.Context, p Policy, device, cmd string) error {
	q := o.queues.Bridge
	res, err := o.bridge.Exec(ctx, device, cmd)
	if err != nil {
		return err
	}

	switch {
	case p.FireAndForget:
		q.Putf("$ %s → sent", cmd)
	case bridge.IsToolCommand(cmd):
		q.Putf("[ADB TOOL] %s", cmd)
		q.Put(outputOrPlaceholder(res.Output))
	default:
		q.Putf("$ %s", cmd)
		q.Put(outputOrPlaceholder(res.Output))
	}

	if !res.Success() {
		return &ExitStatusError{Command: cmd, Code: res.ExitCode}
	}
	return nil
}

func outputOrPlaceholder(out string) string {
	out = strings.TrimSpace(out)
	if out == "" {
		return "(no output)"
	}
	return out
}

// AutoConnect opens the configured serial port at startup.
func (o *Orchestrator) AutoConnect() bool {
	cfg := o.config.Current()
	if err := o.console.Connect(cfg.SerialPort, cfg.SerialBaud); err != nil {
		o.queues.Serial.Putf("[⚠] Auto-connect failed: %v", err)
		return false
	}
	o.queues.Serial.Putf("[✓] Auto-connected %s @ %d", cfg.SerialPort, cfg.SerialBaud)
	o.queues.Serial.Put("[ℹ] Serial monitor started")
	return true
}

// SendInterrupt sends Ctrl+C to the serial console.
func (o *Orchestrator) SendInterrupt() {
	o.console.SendInterrupt()
}

// Shutdown closes the serial session and persists the configuration.
// Steps still in flight are not waited for; call Wait first.
func (o *Orchestrator) Shutdown() {
	if err := o.console.Disconnect(); err != nil {
		o.logger().Warn().Err(err).Msg("failed to close serial session")
	}
	o.persist()
	o.logger().Info().Msg("workflow shut down")
}
