package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/return2faye/binlogkit/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample binlogkit configuration file.

By default, the configuration file is created at
$XDG_CONFIG_HOME/binlogkit/config.yaml. Use --config to specify a custom path.

Examples:
  # Initialize with default location
  binlogctl init

  # Initialize with custom path
  binlogctl init --config /etc/binlogkit/config.yaml

  # Force overwrite an existing config
  binlogctl init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := GetConfigFile()
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}
	}

	cfg := config.GetDefaultConfig()
	if err := config.SaveConfig(cfg, path); err != nil {
		return fmt.Errorf("initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", path)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize writer/receipt settings")
	fmt.Printf("  2. Run the demo: binlogctl demo --config %s\n", path)
	return nil
}
