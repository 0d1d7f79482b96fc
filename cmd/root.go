package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"hudebug/pkg/app"
	"hudebug/pkg/bridge"
	"hudebug/pkg/config"
	"hudebug/pkg/logging"
	"hudebug/pkg/syncutil"
)

// ADBEnv names the environment variable that overrides the adb binary.
const ADBEnv = "HUDEBUG_ADB"

var (
	version = "dev"

	// Root command flags
	configPath string
	logDir     string
	adbPath    string
	verbose    bool

	// Root command
	rootCmd = &cobra.Command{
		Use:   "hudebug",
		Short: "Head-unit bring-up over serial console and adb",
		Long: `hudebug drives an automotive head-unit board through its serial console
and the adb device bridge: connect and run init commands, run bridge
commands, push files and reboot, then run post-boot diagnostics.

Without a subcommand the interactive two-pane view is started.`,
		Version:           version,
		RunE:              runTUI,
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
)

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	defaultADB := bridge.DefaultADB
	if env := os.Getenv(ADBEnv); env != "" {
		defaultADB = env
	}

	// Persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFile, "workflow configuration file")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "directory for mirror files and the diagnostic log (default: log_dir from the config)")
	rootCmd.PersistentFlags().StringVar(&adbPath, "adb", defaultADB, "adb binary (env "+ADBEnv+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(configCmd)
}

// newApplication builds the application from the root flags and points the
// diagnostic log at its log directory. console receives log output as well
// when verbose is set.
func newApplication(console io.Writer) (*app.Application, io.Closer, error) {
	application, err := app.New(app.Options{
		ConfigPath: configPath,
		LogDir:     logDir,
		ADB:        adbPath,
		Fs:         afero.NewOsFs(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create application: %w", err)
	}

	opts := logging.Options{Dir: application.LogDir(), Verbose: verbose}
	if verbose {
		opts.Console = console
	}
	closer, err := logging.Init(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	log.Info().
		Str("version", version).
		Str("config", application.Config().Path()).
		Bool("deadlock_detection", syncutil.DeadlockEnabled).
		Msg("hudebug starting")
	return application, closer, nil
}
