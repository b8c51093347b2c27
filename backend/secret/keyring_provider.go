package secret

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// DefaultKeyringService is the service name seyal's entries are stored under
// in the OS keychain.
const DefaultKeyringService = "seyal"

type KeyringProvider struct {
	service string
}

type KeyringOption func(*KeyringProvider)

func WithKeyringService(service string) KeyringOption {
	return func(k *KeyringProvider) {
		k.service = service
	}
}

func NewKeyringProvider(opts ...KeyringOption) *KeyringProvider {
	k := &KeyringProvider{service: DefaultKeyringService}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

func (k *KeyringProvider) Get(key string) (string, error) {
	value, err := keyring.Get(k.service, key)
	return value, k.wrap("read", key, err)
}

func (k *KeyringProvider) Set(key string, value string) error {
	return k.wrap("store", key, keyring.Set(k.service, key, value))
}

func (k *KeyringProvider) Delete(key string) error {
	return k.wrap("delete", key, keyring.Delete(k.service, key))
}

func (k *KeyringProvider) wrap(op, key string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, keyring.ErrNotFound):
		return &ErrSecretNotFound{Key: key, Err: err}
	case errors.Is(err, keyring.ErrSetDataTooBig):
		return &ErrSecretTooLarge{Key: key, Err: err}
	default:
		return fmt.Errorf("keyring %s %s/%s: %w", op, k.service, key, err)
	}
}
