package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var errNoTerminal = errors.New("the interactive view needs a terminal; use 'hudebug run <step>...' instead")

// tuiCmd represents the interactive view
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Start the interactive two-pane view",
	Long: `Start the interactive view: the serial console on the left, adb output
on the right.

Keys:
  1-6     run the step with that number
  m       open the step menu (Enter works too)
  i       send Ctrl+C to the serial console
  r       reload the configuration file
  q       quit (Ctrl+C and Esc work too)

The configured serial port is opened on start. Edits to the configuration
file are picked up while the view runs.`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func runTUI(cmd *cobra.Command, _ []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errNoTerminal
	}

	// Log output would corrupt the screen, so it only goes to the file.
	application, closer, err := newApplication(nil)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return application.RunInteractive(ctx, screen)
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
