package secret

import (
	"errors"
	"fmt"
	"log/slog"
)

// Provider defines the interface for secret storage backends.
type Provider interface {
	// Get retrieves a secret by key.
	Get(key string) (string, error)

	// Set stores a secret with the given key.
	Set(key string, value string) error

	// Delete removes a secret by key.
	Delete(key string) error
}

// SessionAssociated binds a sealed secret to the session it belongs to.
func SessionAssociated(sessionID string) []byte {
	return []byte(fmt.Sprintf("session:%s", sessionID))
}

func EncryptionKeySecret() string {
	return "encryption_key"
}

// APIKeySecret names the stored API key of a model provider.
func APIKeySecret(provider string) string {
	return fmt.Sprintf("api_key_%s", provider)
}

// ChainProvider reads from the first provider that has the key and writes to
// the first provider that accepts it.
type ChainProvider struct {
	providers []Provider
}

func NewChainProvider(providers ...Provider) *ChainProvider {
	return &ChainProvider{providers: providers}
}

func (c *ChainProvider) Get(key string) (string, error) {
	var lastErr error = &ErrSecretNotFound{Key: key, Err: errors.New("no provider configured")}
	for _, p := range c.providers {
		value, err := p.Get(key)
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, &ErrSecretNotFound{}) {
			slog.Debug("secret provider failed", "key", key, "error", err)
		}
		lastErr = err
	}
	if !errors.Is(lastErr, &ErrSecretNotFound{}) {
		return "", &ErrSecretNotFound{Key: key, Err: lastErr}
	}
	return "", lastErr
}

func (c *ChainProvider) Set(key string, value string) error {
	var errs []error
	for _, p := range c.providers {
		err := p.Set(key, value)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return fmt.Errorf("no provider accepted secret %s: %w", key, errors.Join(errs...))
}

func (c *ChainProvider) Delete(key string) error {
	var errs []error
	for _, p := range c.providers {
		if err := p.Delete(key); err != nil && !errors.Is(err, &ErrSecretNotFound{}) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
