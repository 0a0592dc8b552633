package configure

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"agentdesk/internal/config"
	"agentdesk/internal/keyring"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// passwordReader abstracts terminal password input for testing.
type passwordReader interface {
	ReadPassword() (string, error)
	IsTerminal() bool
}

// terminalReader reads passwords from the terminal using golang.org/x/term.
type terminalReader struct {
	fd int
}

func (r *terminalReader) ReadPassword() (string, error) {
	password, err := term.ReadPassword(r.fd)
	if err != nil {
		return "", err
	}
	return string(password), nil
}

func (r *terminalReader) IsTerminal() bool {
	return term.IsTerminal(r.fd)
}

type options struct {
	store          keyring.Store
	passwordReader passwordReader
	stdin          io.Reader
	getenv         func(string) string
}

var Cmd = newCmd(options{
	store:          keyring.NewSystemStore(),
	passwordReader: &terminalReader{fd: int(os.Stdin.Fd())},
	stdin:          os.Stdin,
	getenv:         os.Getenv,
})

func keys() []string {
	k := make([]string, 0, len(keyring.EnvVars))
	for key := range keyring.EnvVars {
		k = append(k, key)
	}
	slices.Sort(k)
	return k
}

func newCmd(opts options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Manage API keys in the system keyring",
		Long: `Store the API keys agentdesk needs in the system keyring.

Environment variables and a .env file in the working directory take
precedence over the keyring. The config file lives at ` + config.Path() + `.

Keys: ` + strings.Join(keys(), ", "),
	}
	cmd.SilenceUsage = true
	cmd.AddCommand(newSetCmd(opts), newDeleteCmd(opts), newStatusCmd(opts))
	return cmd
}

func validKey(key string) error {
	if _, ok := keyring.EnvVars[key]; !ok {
		return fmt.Errorf("unknown key %q (valid: %s)", key, strings.Join(keys(), ", "))
	}
	return nil
}

func newSetCmd(opts options) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key>",
		Short: "Store a secret, read from the terminal without echo or from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if err := validKey(key); err != nil {
				return err
			}

			var secret string
			if opts.passwordReader.IsTerminal() {
				fmt.Fprintf(cmd.OutOrStdout(), "Enter %s: ", key)
				s, err := opts.passwordReader.ReadPassword()
				fmt.Fprintln(cmd.OutOrStdout())
				if err != nil {
					return fmt.Errorf("reading secret: %w", err)
				}
				secret = s
			} else {
				line, err := bufio.NewReader(opts.stdin).ReadString('\n')
				if err != nil && err != io.EOF {
					return fmt.Errorf("reading secret: %w", err)
				}
				secret = line
			}

			secret = strings.TrimSpace(secret)
			if secret == "" {
				return fmt.Errorf("empty secret for %s", key)
			}
			if err := opts.store.Set(keyring.ServiceName, key, secret); err != nil {
				return fmt.Errorf("storing %s: %w", key, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s\n", key)
			return nil
		},
	}
}

func newDeleteCmd(opts options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Remove a secret from the keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validKey(args[0]); err != nil {
				return err
			}
			if err := opts.store.Delete(keyring.ServiceName, args[0]); err != nil {
				return fmt.Errorf("deleting %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newStatusCmd(opts options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show where each secret comes from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, key := range keys() {
				source := "missing"
				if opts.getenv(keyring.EnvVars[key]) != "" {
					source = "env " + keyring.EnvVars[key]
				} else if _, err := opts.store.Get(keyring.ServiceName, key); err == nil {
					source = "keyring"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", key, source)
			}
			return nil
		},
	}
}
