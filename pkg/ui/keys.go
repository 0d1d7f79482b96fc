package ui

import "github.com/gdamore/tcell/v2"

// Action is what a key press asks the application to do.
type Action int

const (
	ActionNone Action = iota
	ActionStep
	ActionInterrupt
	ActionReload
	ActionMenu
	ActionQuit
)

// Command is a decoded key press. Step is set for ActionStep.
type Command struct {
	Action Action
	Step   int
}

// HelpText lists the key bindings shown in the header.
const HelpText = "1-6 run step | m menu | i interrupt | r reload config | q quit"

// KeyCommand maps a key event to a command.
func KeyCommand(ev *tcell.EventKey) Command {
	switch ev.Key() {
	case tcell.KeyCtrlC, tcell.KeyEscape:
		return Command{Action: ActionQuit}
	case tcell.KeyEnter:
		return Command{Action: ActionMenu}
	case tcell.KeyRune:
	default:
		return Command{}
	}

	r := ev.Rune()
	switch {
	case r >= '1' && r <= '6':
		return Command{Action: ActionStep, Step: int(r - '0')}
	case r == 'i' || r == 'I':
		return Command{Action: ActionInterrupt}
	case r == 'r' || r == 'R':
		return Command{Action: ActionReload}
	case r == 'm' || r == 'M':
		return Command{Action: ActionMenu}
	case r == 'q' || r == 'Q':
		return Command{Action: ActionQuit}
	default:
		return Command{}
	}
}
