package cmd

import (
	"fmt"

	"github.com/furisto/seyal/frontend/cli/pkg/terminal"
	"github.com/furisto/seyal/shared/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and initialize the configuration",
		Long: `The configuration lives in config.yaml in the user config directory.
Environment variables (SEYAL_PROVIDER, SEYAL_STORE, SEYAL_DB_PATH,
SEYAL_HTTP_ADDRESS, SEYAL_COMPACTION_THRESHOLD, SEYAL_POSTHOG_KEY) override it.`,
		GroupID: "system",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

func configStore(cmd *cobra.Command) *config.Store {
	ctx := cmd.Context()
	store := config.NewStore(getFileSystem(ctx), getUserInfo(ctx))
	if path := getGlobalOptions(ctx).ConfigPath; path != "" {
		store = store.WithPath(path)
	}
	return store
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *getConfig(cmd.Context())
			if cfg.APIKey != "" {
				cfg.APIKey = "********"
			}
			if cfg.Analytics.PostHogKey != "" {
				cfg.Analytics.PostHogKey = "********"
			}

			content, err := yaml.Marshal(&cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(content)
			return err
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the location of the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configStore(cmd).Path()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

type configInitOptions struct {
	Provider string
	Force    bool
}

func newConfigInitCmd() *cobra.Command {
	options := configInitOptions{}
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := configStore(cmd)
			path, err := store.Path()
			if err != nil {
				return err
			}

			exists, err := getFileSystem(cmd.Context()).Exists(path)
			if err != nil {
				return err
			}
			if exists && !options.Force {
				return fmt.Errorf("config file %s already exists, use --force to overwrite it", path)
			}

			cfg := config.Default()
			cfg.Provider = config.ProviderKind(options.Provider)
			cfg.Store = config.StoreSQLite
			if err := store.Save(cfg); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s Config written to %s\n", terminal.SuccessSymbol, path)
			return nil
		},
	}

	cmd.Flags().StringVar(&options.Provider, "provider", string(config.ProviderGemini), "model provider (gemini, anthropic, openai)")
	cmd.Flags().BoolVarP(&options.Force, "force", "f", false, "overwrite an existing config file")
	return cmd
}

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Print version information",
		GroupID: "system",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "seyal %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
			return nil
		},
	}
}
