package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/furisto/seyal/shared"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const FileName = "config.yaml"

type ProviderKind string

const (
	ProviderGemini    ProviderKind = "gemini"
	ProviderAnthropic ProviderKind = "anthropic"
	ProviderOpenAI    ProviderKind = "openai"
)

func (k ProviderKind) Valid() bool {
	switch k {
	case ProviderGemini, ProviderAnthropic, ProviderOpenAI:
		return true
	}
	return false
}

type StoreKind string

const (
	StoreMemory StoreKind = "memory"
	StoreSQLite StoreKind = "sqlite"
)

type Config struct {
	Provider    ProviderKind     `yaml:"provider"`
	APIKey      string           `yaml:"api_key,omitempty"`
	BaseURL     string           `yaml:"base_url,omitempty"`
	Models      ModelsConfig     `yaml:"models"`
	HTTPAddress string           `yaml:"http_address"`
	Store       StoreKind        `yaml:"store"`
	DBPath      string           `yaml:"db_path,omitempty"`
	Compaction  CompactionConfig `yaml:"compaction"`
	Retry       RetryConfig      `yaml:"retry"`
	Analytics   AnalyticsConfig  `yaml:"analytics"`
}

// ModelsConfig names the model used by each agent role. Empty entries fall
// back to the provider defaults.
type ModelsConfig struct {
	Planner    string `yaml:"planner,omitempty"`
	Tasks      string `yaml:"tasks,omitempty"`
	Reflector  string `yaml:"reflector,omitempty"`
	Summarizer string `yaml:"summarizer,omitempty"`
}

type CompactionConfig struct {
	Threshold int `yaml:"threshold"`
	Retain    int `yaml:"retain"`
}

type RetryConfig struct {
	MaxAttempts  uint          `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

type AnalyticsConfig struct {
	PostHogKey      string `yaml:"posthog_key,omitempty"`
	PostHogEndpoint string `yaml:"posthog_endpoint,omitempty"`
}

func Default() *Config {
	return &Config{
		Provider:    ProviderGemini,
		HTTPAddress: "127.0.0.1:8501",
		Store:       StoreMemory,
		Compaction: CompactionConfig{
			Threshold: 5,
			Retain:    3,
		},
		Retry: RetryConfig{
			MaxAttempts:  5,
			InitialDelay: time.Second,
			MaxDelay:     10 * time.Second,
		},
	}
}

func (c *Config) Validate() error {
	if !c.Provider.Valid() {
		return fmt.Errorf("unsupported provider %q", c.Provider)
	}

	switch c.Store {
	case StoreMemory, StoreSQLite:
	default:
		return fmt.Errorf("unsupported store %q", c.Store)
	}

	if c.Compaction.Retain < 0 {
		return fmt.Errorf("compaction retain must not be negative")
	}

	if c.Compaction.Threshold < c.Compaction.Retain {
		return fmt.Errorf("compaction threshold (%d) must not be lower than retain (%d)", c.Compaction.Threshold, c.Compaction.Retain)
	}

	return nil
}

// Store reads and writes the YAML config file under the user's config dir.
type Store struct {
	fs       *afero.Afero
	userInfo shared.UserInfo
	path     string
}

func NewStore(fs *afero.Afero, userInfo shared.UserInfo) *Store {
	return &Store{fs: fs, userInfo: userInfo}
}

// WithPath pins the store to an explicit file instead of the default location.
func (s *Store) WithPath(path string) *Store {
	s.path = path
	return s
}

func (s *Store) Path() (string, error) {
	if s.path != "" {
		return s.path, nil
	}

	dir, err := s.userInfo.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load returns the defaults overlaid with the config file (if any) and the
// environment.
func (s *Store) Load() (*Config, error) {
	cfg := Default()

	path, err := s.Path()
	if err != nil {
		return nil, err
	}

	exists, err := s.fs.Exists(path)
	if err != nil {
		return nil, err
	}

	if exists {
		content, err := s.fs.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(content, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (s *Store) Save(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	path, err := s.Path()
	if err != nil {
		return err
	}

	if err := s.fs.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return s.fs.WriteFile(path, content, 0600)
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SEYAL_PROVIDER"); v != "" {
		cfg.Provider = ProviderKind(v)
	}
	if v := os.Getenv("SEYAL_HTTP_ADDRESS"); v != "" {
		cfg.HTTPAddress = v
	}
	if v := os.Getenv("SEYAL_STORE"); v != "" {
		cfg.Store = StoreKind(v)
	}
	if v := os.Getenv("SEYAL_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("SEYAL_COMPACTION_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Compaction.Threshold = n
		}
	}
	if v := os.Getenv("SEYAL_POSTHOG_KEY"); v != "" {
		cfg.Analytics.PostHogKey = v
	}
}
