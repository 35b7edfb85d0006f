package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/marmos91/hostkit/pkg/config"
	"github.com/marmos91/hostkit/pkg/identity"
	sessionstore "github.com/marmos91/hostkit/pkg/session/store"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the hostkit configuration file.

Checks for syntax errors, missing required fields and invalid values.

Examples:
  # Validate default config
  hostkit config validate

  # Validate specific config file
  hostkit config validate --config /etc/hostkit/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	var warnings []string

	if info, err := os.Stat(cfg.DataDirectory); err != nil || !info.IsDir() {
		warnings = append(warnings, fmt.Sprintf("Data directory %s does not exist - start will fail", cfg.DataDirectory))
	}
	for _, c := range []struct {
		name  string
		realm string
	}{{"webapp", cfg.WebApp.Realm}, {"webservice", cfg.WebService.Realm}} {
		if c.realm == "" {
			continue
		}
		if _, ok := cfg.Identity.Realms[c.realm]; !ok {
			warnings = append(warnings, fmt.Sprintf("%s realm %q is not defined under identity.realms", c.name, c.realm))
		}
	}
	for _, name := range sortedRealms(cfg.Identity.Realms) {
		for _, u := range cfg.Identity.Realms[name].Users {
			if identity.NeedsRehash(u.PasswordHash) {
				warnings = append(warnings, fmt.Sprintf("User %s in realm %s has a weak or malformed password hash (run 'hostkit passwd')", u.Username, name))
			}
		}
	}
	if cfg.Session.Store.Type == sessionstore.TypeMemory {
		warnings = append(warnings, "Sessions are kept in memory and lost on restart")
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintf(out, "\nConfiguration summary:\n")
	_, _ = fmt.Fprintf(out, "  Data directory:  %s\n", cfg.DataDirectory)
	_, _ = fmt.Fprintf(out, "  Web app port:    %d\n", cfg.WebApp.Port)
	_, _ = fmt.Fprintf(out, "  Web svc port:    %d\n", cfg.WebService.Port)
	_, _ = fmt.Fprintf(out, "  Session store:   %s\n", cfg.Session.Store.Type)
	_, _ = fmt.Fprintf(out, "  Log level:       %s\n", cfg.Logging.Level)

	return nil
}

func sortedRealms(realms map[string]config.RealmConfig) []string {
	names := make([]string, 0, len(realms))
	for name := range realms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
