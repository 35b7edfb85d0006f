package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/hostkit/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample hostkit configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/hostkit/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  hostkit init

  # Initialize with custom path
  hostkit init --config /etc/hostkit/config.yaml

  # Force overwrite existing config
  hostkit init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error

	if configFile != "" {
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		configPath, err = config.InitConfig(initForce)
	}

	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Edit the configuration file to customize your setup")
	_, _ = fmt.Fprintln(out, "  2. Start the server with: hostkit start")
	_, _ = fmt.Fprintf(out, "  3. Or specify custom config: hostkit start --config %s\n", configPath)
	return nil
}
