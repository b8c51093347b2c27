package secret

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// EnvVar is the environment variable holding the API key of a provider.
func EnvVar(provider string) string {
	return fmt.Sprintf("%s_API_KEY", strings.ToUpper(provider))
}

type APIKeySource string

const (
	APIKeySourceConfig APIKeySource = "config"
	APIKeySourceEnv    APIKeySource = "env"
	APIKeySourceStore  APIKeySource = "store"
)

type ResolverOptions struct {
	Configured string
	LookupEnv  func(string) (string, bool)
	Store      Provider
}

type ResolverOption func(*ResolverOptions)

// WithConfiguredKey sets the key from the config file, which wins over every
// other source.
func WithConfiguredKey(key string) ResolverOption {
	return func(o *ResolverOptions) {
		o.Configured = key
	}
}

func WithLookupEnv(lookup func(string) (string, bool)) ResolverOption {
	return func(o *ResolverOptions) {
		o.LookupEnv = lookup
	}
}

func WithStore(store Provider) ResolverOption {
	return func(o *ResolverOptions) {
		o.Store = store
	}
}

// APIKeyResolver finds the process wide API key of a model provider.
type APIKeyResolver struct {
	provider   string
	configured string
	lookupEnv  func(string) (string, bool)
	store      Provider
}

func NewAPIKeyResolver(provider string, opts ...ResolverOption) *APIKeyResolver {
	options := &ResolverOptions{LookupEnv: os.LookupEnv}
	for _, opt := range opts {
		opt(options)
	}

	return &APIKeyResolver{
		provider:   provider,
		configured: options.Configured,
		lookupEnv:  options.LookupEnv,
		store:      options.Store,
	}
}

func (r *APIKeyResolver) Provider() string {
	return r.provider
}

// Resolve returns the first key found in config, environment and store, in
// that order.
func (r *APIKeyResolver) Resolve() (string, APIKeySource, error) {
	if key := strings.TrimSpace(r.configured); key != "" {
		return key, APIKeySourceConfig, nil
	}

	if r.lookupEnv != nil {
		if key, ok := r.lookupEnv(EnvVar(r.provider)); ok && strings.TrimSpace(key) != "" {
			return strings.TrimSpace(key), APIKeySourceEnv, nil
		}
	}

	if r.store != nil {
		key, err := r.store.Get(APIKeySecret(r.provider))
		if err == nil && strings.TrimSpace(key) != "" {
			return strings.TrimSpace(key), APIKeySourceStore, nil
		}
		if err != nil && !errors.Is(err, &ErrSecretNotFound{}) {
			return "", "", fmt.Errorf("failed to read stored API key: %w", err)
		}
	}

	return "", "", fmt.Errorf("%w for %s", ErrNoAPIKey, r.provider)
}

// Store persists key for later runs.
func (r *APIKeyResolver) Store(key string) error {
	if r.store == nil {
		return fmt.Errorf("no secret store configured")
	}
	return r.store.Set(APIKeySecret(r.provider), strings.TrimSpace(key))
}

// Forget removes a stored key. Keys from config or environment are not
// touched.
func (r *APIKeyResolver) Forget() error {
	if r.store == nil {
		return nil
	}
	err := r.store.Delete(APIKeySecret(r.provider))
	if err != nil && !errors.Is(err, &ErrSecretNotFound{}) {
		return err
	}
	return nil
}
