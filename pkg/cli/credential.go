package cli

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dshills/autoflow/pkg/credential"
)

const maxCredentialSize = 1 << 20 // 1MB limit for all credential inputs

// isOnlyWhitespace checks if a byte slice contains only Unicode whitespace characters
// without allocating strings. Returns true if empty or whitespace-only.
func isOnlyWhitespace(data []byte) bool {
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			return false
		}
		if !unicode.IsSpace(r) {
			return false
		}
		i += size
	}
	return true
}

func newCredentialCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage secrets referenced by node configuration",
		Long: `Manage secrets in the system keyring (Keychain on macOS, Credential Manager
on Windows, Secret Service on Linux). Node configuration references a secret
as secret://<name>; the reference is resolved when the node executes and
the value never appears in saved workflows.`,
	}

	cmd.AddCommand(newCredentialSetCommand(app))
	cmd.AddCommand(newCredentialListCommand(app))
	cmd.AddCommand(newCredentialDeleteCommand(app))
	return cmd
}

func newCredentialSetCommand(app *App) *cobra.Command {
	var (
		value    string
		useStdin bool
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Store a secret",
		Long: `Store a secret in the system keyring.

Examples:
  # Interactive prompt without echo (recommended for local use)
  autoflow credential set smtp-password

  # From stdin (recommended for automation)
  printf '%s' "$SMTP_PASSWORD" | autoflow credential set smtp-password --stdin

  # Then reference it from a node
  autoflow workflow set workflow-1234 node-5678 password secret://smtp-password

Notes:
  - --stdin reads until EOF, at most 1MB; only trailing CR/LF is removed
  - --value is visible in shell history and the process list
  - Whitespace-only secrets are rejected`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			store := app.Credentials

			if _, err := store.Get(name); err == nil && !force {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Credential '%s' already exists. Overwrite? [y/N]: ", name)
				response, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				response = strings.ToLower(strings.TrimSpace(response))
				if response != "y" && response != "yes" {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
					return nil
				}
			}

			secret, err := readSecret(cmd, name, value, useStdin)
			if err != nil {
				return err
			}
			if err := store.Set(name, secret); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Credential '%s' stored; reference it as %s\n", name, credential.Ref(name))
			return nil
		},
	}

	cmd.Flags().StringVar(&value, "value", "", "Secret value (prompted without echo when omitted)")
	cmd.Flags().BoolVar(&useStdin, "stdin", false, "Read the secret from stdin")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing secret without asking")
	cmd.MarkFlagsMutuallyExclusive("stdin", "value")
	return cmd
}

// readSecret reads the secret from stdin, the --value flag or a terminal
// prompt, in that order of preference.
func readSecret(cmd *cobra.Command, name, value string, useStdin bool) (string, error) {
	var raw []byte
	defer func() {
		for i := range raw {
			raw[i] = 0
		}
	}()

	switch {
	case useStdin:
		data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), maxCredentialSize+1))
		raw = data
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		if len(raw) > maxCredentialSize {
			return "", fmt.Errorf("credential value exceeds maximum size of %d bytes", maxCredentialSize)
		}
		raw = bytes.TrimRight(raw, "\r\n")
	case value != "":
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Warning: Using --value flag exposes the secret in shell history.")
		if len(value) > maxCredentialSize {
			return "", fmt.Errorf("credential value exceeds maximum size of %d bytes", maxCredentialSize)
		}
		raw = []byte(value)
	default:
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Enter value for '%s': ", name)
		data, err := term.ReadPassword(int(os.Stdin.Fd()))
		_, _ = fmt.Fprintln(cmd.OutOrStdout())
		raw = data
		if err != nil {
			return "", fmt.Errorf("failed to read credential value: %w", err)
		}
		if len(raw) > maxCredentialSize {
			return "", fmt.Errorf("credential value exceeds maximum size of %d bytes", maxCredentialSize)
		}
	}

	if len(raw) == 0 {
		return "", errors.New("credential value cannot be empty")
	}
	if isOnlyWhitespace(raw) {
		return "", errors.New("credential cannot contain only whitespace characters")
	}
	return string(raw), nil
}

func newCredentialListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored secret names",
		Long:  `List the names of stored secrets. Values are never displayed.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := app.Credentials.List()
			if err != nil {
				return fmt.Errorf("failed to list credentials: %w", err)
			}
			if len(names) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No credentials configured.")
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "\nAdd one with: autoflow credential set <name>")
				return nil
			}
			for _, n := range names {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t(set)\n", credential.Ref(n))
			}
			return nil
		},
	}
}

func newCredentialDeleteCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Credentials.Delete(args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Credential '%s' deleted\n", args[0])
			return nil
		},
	}
}
