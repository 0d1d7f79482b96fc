package workflow

import (
	"fmt"
	"strconv"
	"time"
)

// Step identifies one of the six workflow actions.
type Step int

const (
	StepConnect Step = iota + 1
	StepBridge
	StepPushReboot
	StepPostBootA
	StepPostBootB
	StepBridgeAgain
)

// Steps lists every step in order.
var Steps = []Step{StepConnect, StepBridge, StepPushReboot, StepPostBootA, StepPostBootB, StepBridgeAgain}

func (s Step) String() string {
	switch s {
	case StepConnect:
		return "connect+init"
	case StepBridge:
		return "bridge commands"
	case StepPushReboot:
		return "push+reboot"
	case StepPostBootA:
		return "post-boot A"
	case StepPostBootB:
		return "post-boot B"
	case StepBridgeAgain:
		return "bridge commands (again)"
	default:
		return fmt.Sprintf("step %d", int(s))
	}
}

// Valid reports whether s names one of the six steps.
func (s Step) Valid() bool {
	return s >= StepConnect && s <= StepBridgeAgain
}

// ParseStep converts "1".."6" to a Step.
func ParseStep(arg string) (Step, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownStep, arg)
	}
	s := Step(n)
	if !s.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownStep, n)
	}
	return s, nil
}

// Target is where a step sends its script.
type Target int

const (
	TargetSerial Target = iota
	TargetBridge
)

func (t Target) String() string {
	if t == TargetBridge {
		return "bridge"
	}
	return "serial"
}

// Policy is how a step executes its script.
type Policy struct {
	Target Target
	// Settle is the wait after each serial command before the response is read.
	Settle time.Duration
	// Interruptible steps accept SendInterrupt while they run.
	Interruptible bool
	// RequireOpen aborts the step unless the serial session is open.
	RequireOpen bool
	// FireAndForget reports commands as sent without echoing their output.
	FireAndForget bool
}

const (
	// InitSettle is the wait after each step 1 command.
	InitSettle = 500 * time.Millisecond
	// PostBootSettle is the wait after each step 4 and 5 command.
	PostBootSettle = time.Second
)

var policies = map[Step]Policy{
	StepConnect:     {Target: TargetSerial, Settle: InitSettle},
	StepBridge:      {Target: TargetBridge},
	StepPushReboot:  {Target: TargetBridge, FireAndForget: true},
	StepPostBootA:   {Target: TargetSerial, Settle: PostBootSettle, Interruptible: true, RequireOpen: true},
	StepPostBootB:   {Target: TargetSerial, Settle: PostBootSettle, RequireOpen: true},
	StepBridgeAgain: {Target: TargetBridge},
}

// PolicyFor returns the execution policy of step.
func PolicyFor(step Step) (Policy, bool) {
	p, ok := policies[step]
	return p, ok
}
