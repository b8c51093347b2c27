package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/furisto/seyal/backend/api"
	"github.com/furisto/seyal/backend/secret"
	"github.com/furisto/seyal/shared"
	"github.com/furisto/seyal/shared/config"
	"github.com/spf13/afero"
)

type ContextKey string

const (
	ContextKeyFileSystem      ContextKey = "filesystem"
	ContextKeyUserInfo        ContextKey = "user_info"
	ContextKeyConfig          ContextKey = "config"
	ContextKeyGlobalOptions   ContextKey = "global_options"
	ContextKeyRuntime         ContextKey = "runtime"
	ContextKeySecretStore     ContextKey = "secret_store"
	ContextKeyOutputRenderer  ContextKey = "output_renderer"
	ContextKeyClock           ContextKey = "clock"
	ContextKeyDisableFileLogs ContextKey = "disable_file_logs"
)

func getFileSystem(ctx context.Context) *afero.Afero {
	if fs, ok := ctx.Value(ContextKeyFileSystem).(*afero.Afero); ok {
		return fs
	}
	return &afero.Afero{Fs: afero.NewOsFs()}
}

func getUserInfo(ctx context.Context) shared.UserInfo {
	if userInfo, ok := ctx.Value(ContextKeyUserInfo).(shared.UserInfo); ok {
		return userInfo
	}
	return shared.NewDefaultUserInfo(getFileSystem(ctx))
}

func setConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, ContextKeyConfig, cfg)
}

func getConfig(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(ContextKeyConfig).(*config.Config); ok {
		return cfg
	}
	return config.Default()
}

func setGlobalOptions(ctx context.Context, options *globalOptions) context.Context {
	return context.WithValue(ctx, ContextKeyGlobalOptions, options)
}

func getGlobalOptions(ctx context.Context) *globalOptions {
	if options, ok := ctx.Value(ContextKeyGlobalOptions).(*globalOptions); ok {
		return options
	}
	return &globalOptions{Session: defaultSession}
}

func getRenderer(ctx context.Context) OutputRenderer {
	if renderer, ok := ctx.Value(ContextKeyOutputRenderer).(OutputRenderer); ok {
		return renderer
	}
	return nil
}

func getClock(ctx context.Context) func() time.Time {
	if clock, ok := ctx.Value(ContextKeyClock).(func() time.Time); ok {
		return clock
	}
	return time.Now
}

// getInjectedRuntime returns a runtime placed in the context, which replaces
// the one built from config.
func getInjectedRuntime(ctx context.Context) (api.Runtime, bool) {
	runtime, ok := ctx.Value(ContextKeyRuntime).(api.Runtime)
	return runtime, ok
}

// getSecretStore keeps secrets in the system keyring and falls back to files
// in the data directory where no keyring is available.
func getSecretStore(ctx context.Context) (secret.Provider, error) {
	if store, ok := ctx.Value(ContextKeySecretStore).(secret.Provider); ok {
		return store, nil
	}

	dataDir, err := getUserInfo(ctx).DataDir()
	if err != nil {
		return nil, err
	}

	files, err := secret.NewFileProvider(getFileSystem(ctx).Fs, filepath.Join(dataDir, "secrets"))
	if err != nil {
		return nil, fmt.Errorf("failed to open secret directory: %w", err)
	}

	return secret.NewChainProvider(secret.NewKeyringProvider(), files), nil
}
