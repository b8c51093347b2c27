package config_test

import (
	"testing"
	"time"

	"github.com/furisto/seyal/shared"
	"github.com/furisto/seyal/shared/config"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

func newStore(t *testing.T) (*config.Store, *afero.Afero) {
	t.Helper()
	fs := &afero.Afero{Fs: afero.NewMemMapFs()}
	return config.NewStore(fs, shared.StaticUserInfo{Base: "/home/test"}), fs
}

func clearEnv(t *testing.T) {
	for _, key := range []string{"SEYAL_PROVIDER", "SEYAL_HTTP_ADDRESS", "SEYAL_STORE", "SEYAL_DB_PATH", "SEYAL_COMPACTION_THRESHOLD", "SEYAL_POSTHOG_KEY"} {
		t.Setenv(key, "")
	}
}

func TestStore_LoadDefaultsWhenMissing(t *testing.T) {
	clearEnv(t)
	store, _ := newStore(t)

	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff(config.Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_LoadMergesFileAndEnv(t *testing.T) {
	clearEnv(t)
	store, fs := newStore(t)

	content := `
provider: anthropic
models:
  planner: claude-sonnet-4-0
store: sqlite
compaction:
  threshold: 8
  retain: 4
retry:
  initial_delay: 2s
`
	if err := fs.WriteFile("/home/test/config/config.yaml", []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SEYAL_HTTP_ADDRESS", "0.0.0.0:9000")

	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := config.Default()
	want.Provider = config.ProviderAnthropic
	want.Models.Planner = "claude-sonnet-4-0"
	want.Store = config.StoreSQLite
	want.Compaction = config.CompactionConfig{Threshold: 8, Retain: 4}
	want.Retry.InitialDelay = 2 * time.Second
	want.HTTPAddress = "0.0.0.0:9000"

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_LoadRejectsInvalid(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown provider", content: "provider: llama\n"},
		{name: "unknown store", content: "store: redis\n"},
		{name: "threshold below retain", content: "compaction:\n  threshold: 2\n  retain: 3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, fs := newStore(t)
			if err := fs.WriteFile("/home/test/config/config.yaml", []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}

			if _, err := store.Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestStore_SaveRoundTrip(t *testing.T) {
	clearEnv(t)
	store, _ := newStore(t)

	cfg := config.Default()
	cfg.Models.Reflector = "gemini-2.5-pro"
	if err := store.Save(cfg); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}

	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}
