package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/regsweep/cmd/regsweep/cmdutil"
	"github.com/marmos91/regsweep/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a configuration file populated with the defaults.

By default, the file is created at $XDG_CONFIG_HOME/regsweep/config.yaml.
Use --config to pick another path.

Examples:
  # Default location
  regsweep config init

  # Custom path
  regsweep config init --config ./regsweep.yaml

  # Overwrite an existing file
  regsweep config init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := cmdutil.Flags.ConfigFile
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
	}

	if err := config.SaveConfig(config.GetDefaultConfig(), path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", path)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Put your token in it, or run 'regsweep login' instead")
	fmt.Printf("  2. Try it: regsweep report OWNER/PACKAGE --config %s\n", path)
	return nil
}
