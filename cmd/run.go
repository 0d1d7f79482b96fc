package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"hudebug/pkg/config"
	"hudebug/pkg/workflow"
)

var (
	runPort string
	runBaud int
	runPush []string
)

// runCmd runs steps without the interactive view
var runCmd = &cobra.Command{
	Use:   "run <step>...",
	Short: "Run workflow steps headless",
	Long: `Run the given steps in order and print the serial and adb feeds to stdout.

Steps:
  1  connect the serial console and run the init script
  2  run the bridge script
  3  push the two configured files and run the reboot script
  4  run post-boot script A over serial
  5  run post-boot script B over serial
  6  run the second bridge script

Example:
  hudebug run 1 2 3 --port /dev/ttyUSB1 --baud 921600
  hudebug run 3 --push build/app.apk=/data/local/tmp/ --push hu.conf=/vendor/etc/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSteps,
}

func init() {
	runCmd.Flags().StringVarP(&runPort, "port", "p", "", "serial port for step 1 (saved to the config)")
	runCmd.Flags().IntVarP(&runBaud, "baud", "b", 0, "baud rate for step 1 (saved to the config)")
	runCmd.Flags().StringArrayVar(&runPush, "push", nil, "local=remote file pair for step 3, at most twice (saved to the config)")
}

// parsePushPairs turns local=remote flag values into push pairs.
func parsePushPairs(specs []string) ([]config.FilePair, error) {
	if len(specs) > 2 {
		return nil, fmt.Errorf("at most two --push pairs, got %d", len(specs))
	}
	pairs := make([]config.FilePair, 0, len(specs))
	for _, spec := range specs {
		local, remote, ok := strings.Cut(spec, "=")
		local, remote = strings.TrimSpace(local), strings.TrimSpace(remote)
		if !ok || local == "" || remote == "" {
			return nil, fmt.Errorf("invalid --push %q: want local=remote", spec)
		}
		pairs = append(pairs, config.FilePair{Local: local, Remote: remote})
	}
	return pairs, nil
}

func runSteps(cmd *cobra.Command, args []string) error {
	steps := make([]workflow.Step, 0, len(args))
	for _, arg := range args {
		step, err := workflow.ParseStep(arg)
		if err != nil {
			return err
		}
		steps = append(steps, step)
	}
	pairs, err := parsePushPairs(runPush)
	if err != nil {
		return err
	}

	application, closer, err := newApplication(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	if len(pairs) > 0 {
		application.Config().Update(func(c *config.WorkflowConfig) {
			c.SetFilePairs(pairs)
		})
	}

	if runPort != "" || runBaud != 0 {
		application.Config().Update(func(c *config.WorkflowConfig) {
			if runPort != "" {
				c.SerialPort = runPort
			}
			if runBaud != 0 {
				c.SerialBaud = runBaud
			}
		})
		if err := application.Config().Current().Validate(); err != nil {
			return fmt.Errorf("invalid serial settings: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return application.RunHeadless(ctx, steps, cmd.OutOrStdout())
}
