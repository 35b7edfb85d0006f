package config

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/hostkit/internal/cli/output"
	"github.com/marmos91/hostkit/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the current hostkit configuration, with defaults and
environment overrides applied.

By default outputs YAML format. Use --output to change format.

Examples:
  # Show default config as YAML
  hostkit config show

  # Show as JSON
  hostkit config show --output json

  # Show specific config file
  hostkit config show --config /etc/hostkit/config.yaml`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(cmd.OutOrStdout(), cfg)
	default:
		return output.PrintYAML(cmd.OutOrStdout(), cfg)
	}
}
