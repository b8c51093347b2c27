package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/furisto/seyal/backend/agent"
	"github.com/furisto/seyal/backend/api"
	"github.com/furisto/seyal/backend/event"
	"github.com/furisto/seyal/backend/memory"
	"github.com/furisto/seyal/backend/model"
	"github.com/furisto/seyal/backend/secret"
	"github.com/furisto/seyal/shared/config"
	"github.com/furisto/seyal/shared/resilience"
	"github.com/prometheus/client_golang/prometheus"
)

const dbFileName = "seyal.db"

// cliStore keeps sessions across command invocations.
const cliStore = config.StoreSQLite

type runtimeSetup struct {
	Store   config.StoreKind
	Bus     *event.Bus
	Metrics prometheus.Registerer
}

// openRuntime builds the agent runtime from config. The returned close
// function is always safe to call.
func openRuntime(ctx context.Context, setup runtimeSetup) (api.Runtime, func(), error) {
	if runtime, ok := getInjectedRuntime(ctx); ok {
		return runtime, func() {}, nil
	}

	cfg := getConfig(ctx)

	store, err := openStore(ctx, cfg, setup.Store)
	if err != nil {
		return nil, func() {}, err
	}

	secrets, err := getSecretStore(ctx)
	if err != nil {
		store.Close()
		return nil, func() {}, err
	}

	encryption, err := secret.LoadOrCreateClient(secrets)
	if err != nil {
		store.Close()
		return nil, func() {}, fmt.Errorf("failed to load encryption key: %w", err)
	}

	bank := memory.NewMemoryBank(store, memory.WithCompaction(&memory.CompactionConfig{
		Threshold: cfg.Compaction.Threshold,
		Retain:    cfg.Compaction.Retain,
	}))

	runtime, err := agent.NewRuntime(bank,
		agent.WithProvider(model.ProviderKind(cfg.Provider)),
		agent.WithRoleModels(model.RoleModels{
			Planner:    cfg.Models.Planner,
			Tasks:      cfg.Models.Tasks,
			Reflector:  cfg.Models.Reflector,
			Summarizer: cfg.Models.Summarizer,
		}),
		agent.WithAPIKeys(secret.NewAPIKeyResolver(string(cfg.Provider),
			secret.WithConfiguredKey(cfg.APIKey),
			secret.WithStore(secrets),
		)),
		agent.WithEncryption(encryption),
		agent.WithBus(setup.Bus),
		agent.WithProviderOptions(providerOptions(cfg, setup.Metrics)...),
		agent.WithMetrics(setup.Metrics),
	)
	if err != nil {
		store.Close()
		return nil, func() {}, err
	}

	return runtime, func() {
		runtime.Close()
		if err := store.Close(); err != nil {
			slog.Warn("failed to close session store", "error", err)
		}
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config, kind config.StoreKind) (memory.Store, error) {
	switch kind {
	case config.StoreMemory:
		return memory.NewMemoryStore(), nil
	case config.StoreSQLite:
		path := cfg.DBPath
		if path == "" {
			dataDir, err := getUserInfo(ctx).DataDir()
			if err != nil {
				return nil, err
			}
			path = filepath.Join(dataDir, dbFileName)
		}

		slog.Debug("opening session store", "path", path)
		return memory.OpenSQLiteStore(ctx, path)
	default:
		return nil, fmt.Errorf("unsupported store %q", kind)
	}
}

func providerOptions(cfg *config.Config, metrics prometheus.Registerer) []model.ProviderOption {
	retry := resilience.DefaultRetryConfig()
	if cfg.Retry.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.Retry.MaxAttempts
	}
	if cfg.Retry.InitialDelay > 0 {
		retry.InitialDelay = cfg.Retry.InitialDelay
	}
	if cfg.Retry.MaxDelay > 0 {
		retry.MaxDelay = cfg.Retry.MaxDelay
	}

	options := []model.ProviderOption{model.WithRetryConfig(retry)}
	if cfg.BaseURL != "" {
		options = append(options, model.WithURL(cfg.BaseURL))
	}
	if metrics != nil {
		options = append(options, model.WithMetrics(metrics))
	}
	return options
}

// providerContext feeds fail.EnhanceError the names it needs to explain a
// missing key.
func providerContext(cfg *config.Config) map[string]interface{} {
	return map[string]interface{}{
		"provider_name": providerDisplayName(cfg.Provider),
		"env_var":       secret.EnvVar(string(cfg.Provider)),
	}
}

func providerDisplayName(kind config.ProviderKind) string {
	switch kind {
	case config.ProviderAnthropic:
		return "Anthropic"
	case config.ProviderOpenAI:
		return "OpenAI"
	default:
		return "Google Gemini"
	}
}
