package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/marmos91/hostkit/internal/cli/prompt"
	"github.com/marmos91/hostkit/pkg/identity"
)

var (
	passwdCost  int
	passwdStdin bool
)

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Hash a password for a static realm",
	Long: `Prompt for a password and print its bcrypt hash.

The output is meant for the password_hash field of a user in a static
identity realm.

Examples:
  # Interactive, with confirmation
  hostkit passwd

  # Non-interactive, reading the first line of stdin
  echo -n 's3cretpass' | hostkit passwd --stdin`,
	Args: cobra.NoArgs,
	RunE: runPasswd,
}

func init() {
	passwdCmd.Flags().IntVar(&passwdCost, "cost", identity.DefaultBcryptCost, "bcrypt cost")
	passwdCmd.Flags().BoolVar(&passwdStdin, "stdin", false, "read the password from stdin instead of prompting")
}

func runPasswd(cmd *cobra.Command, _ []string) error {
	if passwdCost < bcrypt.MinCost || passwdCost > bcrypt.MaxCost {
		return fmt.Errorf("cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	var (
		password string
		err      error
	)
	if passwdStdin {
		password, err = readPasswordLine(cmd.InOrStdin())
		if err == nil {
			err = identity.ValidatePassword(password)
		}
	} else {
		password, err = prompt.IO{}.NewPassword(identity.ValidatePassword)
	}
	if err != nil {
		if prompt.IsAborted(err) {
			return nil
		}
		return err
	}

	hash, err := identity.HashPasswordWithCost(password, passwdCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}

func readPasswordLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
