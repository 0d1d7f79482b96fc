package cmd

import (
	"errors"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"hudebug/pkg/config"
)

var (
	configForce bool

	// configFs is replaced in tests.
	configFs = afero.NewOsFs()
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the workflow configuration",
	Long: `Inspect or create the workflow configuration file.

The file holds the serial port and baud rate, the two push pairs, the log
directory and the command script of each step. Missing keys take their
default value.`,
}

// showCmd prints the configuration in effect
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the configuration in effect",
	Args:  cobra.NoArgs,
	RunE:  runShowConfig,
}

// initCmd writes the defaults
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Args:  cobra.NoArgs,
	RunE:  runInitConfig,
}

// pathCmd prints the file location
var pathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), configPath)
	},
}

func init() {
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(pathCmd)

	initCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite an existing file")
}

func runShowConfig(cmd *cobra.Command, _ []string) error {
	mgr := config.NewFileConfigManager(configFs, configPath)
	cfg, err := mgr.Load()
	if err != nil {
		return err
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runInitConfig(cmd *cobra.Command, _ []string) error {
	exists, err := afero.Exists(configFs, configPath)
	if err != nil {
		return err
	}
	if exists && !configForce {
		return errors.New(configPath + " already exists (use --force to overwrite)")
	}

	mgr := config.NewFileConfigManager(configFs, configPath)
	if err := mgr.Save(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", configPath)
	return nil
}
