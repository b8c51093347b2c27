package secret

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/tink-crypto/tink-go/aead"
	"github.com/tink-crypto/tink-go/insecurecleartextkeyset"
	"github.com/tink-crypto/tink-go/keyset"
	"github.com/tink-crypto/tink-go/tink"
)

// Client seals small secrets, such as API keys entered for a single session,
// with an AES-256-GCM keyset.
type Client struct {
	aead tink.AEAD
}

func NewClient(handle *keyset.Handle) (*Client, error) {
	primitive, err := aead.New(handle)
	if err != nil {
		return nil, fmt.Errorf("failed to create aead primitive: %w", err)
	}
	return &Client{aead: primitive}, nil
}

// Encrypt seals plaintext. associated must be passed unchanged to Decrypt.
func (c *Client) Encrypt(plaintext, associated []byte) ([]byte, error) {
	ciphertext, err := c.aead.Encrypt(plaintext, associated)
	if err != nil {
		return nil, fmt.Errorf("encryption failed: %w", err)
	}
	return ciphertext, nil
}

func (c *Client) Decrypt(ciphertext, associated []byte) ([]byte, error) {
	plaintext, err := c.aead.Decrypt(ciphertext, associated)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}

func GenerateKeyset() (*keyset.Handle, error) {
	handle, err := keyset.NewHandle(aead.AES256GCMKeyTemplate())
	if err != nil {
		return nil, fmt.Errorf("failed to generate keyset: %w", err)
	}
	return handle, nil
}

// KeysetToJSON serializes the keyset in cleartext. The result must only be
// handed to a Provider.
func KeysetToJSON(handle *keyset.Handle) (string, error) {
	var buf bytes.Buffer
	if err := insecurecleartextkeyset.Write(handle, keyset.NewJSONWriter(&buf)); err != nil {
		return "", fmt.Errorf("failed to serialize keyset: %w", err)
	}
	return buf.String(), nil
}

func KeysetFromJSON(serialized string) (*keyset.Handle, error) {
	handle, err := insecurecleartextkeyset.Read(keyset.NewJSONReader(bytes.NewBufferString(serialized)))
	if err != nil {
		return nil, fmt.Errorf("failed to read keyset: %w", err)
	}
	return handle, nil
}

// LoadOrCreateClient reads the encryption keyset from provider, generating and
// storing a new one on first use.
func LoadOrCreateClient(provider Provider) (*Client, error) {
	serialized, err := provider.Get(EncryptionKeySecret())
	if err != nil && !errors.Is(err, &ErrSecretNotFound{}) {
		return nil, err
	}

	if err == nil {
		handle, err := KeysetFromJSON(serialized)
		if err != nil {
			return nil, err
		}
		return NewClient(handle)
	}

	handle, err := GenerateKeyset()
	if err != nil {
		return nil, err
	}

	serialized, err = KeysetToJSON(handle)
	if err != nil {
		return nil, err
	}

	if err := provider.Set(EncryptionKeySecret(), serialized); err != nil {
		return nil, fmt.Errorf("failed to store keyset: %w", err)
	}

	return NewClient(handle)
}
