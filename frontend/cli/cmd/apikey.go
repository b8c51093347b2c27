package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/furisto/seyal/backend/secret"
	"github.com/furisto/seyal/frontend/cli/pkg/terminal"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func NewAPIKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage the model provider API key",
		Long: `Manage the API key the agents use. A key is looked up in the config file,
then in the provider's environment variable (e.g. GEMINI_API_KEY) and then in
the system keyring.`,
		GroupID: "session",
	}

	cmd.AddCommand(newAPIKeySetCmd())
	cmd.AddCommand(newAPIKeyStatusCmd())
	cmd.AddCommand(newAPIKeyDeleteCmd())
	return cmd
}

func apiKeyResolver(ctx context.Context) (*secret.APIKeyResolver, error) {
	secrets, err := getSecretStore(ctx)
	if err != nil {
		return nil, err
	}

	cfg := getConfig(ctx)
	return secret.NewAPIKeyResolver(string(cfg.Provider),
		secret.WithConfiguredKey(cfg.APIKey),
		secret.WithStore(secrets),
	), nil
}

func newAPIKeySetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set [key]",
		Short: "Store the API key in the system keyring",
		Long: `Store the API key in the system keyring. Without an argument the key is read
from stdin, hidden when stdin is a terminal.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			resolver, err := apiKeyResolver(ctx)
			if err != nil {
				return err
			}

			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "Enter %s API Key: ", providerDisplayName(getConfig(ctx).Provider))
				key, err = readSecret(cmd.InOrStdin())
				if err != nil {
					return err
				}
			}

			if strings.TrimSpace(key) == "" {
				return errors.New("api key must not be empty")
			}

			if err := resolver.Store(key); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s API key stored for %s\n", terminal.SuccessSymbol, resolver.Provider())
			return nil
		},
	}
}

func newAPIKeyStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show where the API key comes from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := apiKeyResolver(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, source, err := resolver.Resolve()
			if errors.Is(err, secret.ErrNoAPIKey) {
				fmt.Fprintf(out, "%s No API key configured for %s\n", terminal.WarningSymbol, resolver.Provider())
				return nil
			}
			if err != nil {
				return err
			}

			switch source {
			case secret.APIKeySourceConfig:
				fmt.Fprintf(out, "%s API key for %s is set in the config file\n", terminal.InfoSymbol, resolver.Provider())
			case secret.APIKeySourceEnv:
				fmt.Fprintf(out, "%s API key for %s is taken from %s\n", terminal.InfoSymbol, resolver.Provider(), secret.EnvVar(resolver.Provider()))
			case secret.APIKeySourceStore:
				fmt.Fprintf(out, "%s API key for %s is stored in the keyring\n", terminal.InfoSymbol, resolver.Provider())
			}
			return nil
		},
	}
}

func newAPIKeyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Remove the stored API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := apiKeyResolver(cmd.Context())
			if err != nil {
				return err
			}

			if err := resolver.Forget(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s Stored API key for %s removed\n", terminal.SuccessSymbol, resolver.Provider())
			return nil
		},
	}
}

func readSecret(in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		key, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(key), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
