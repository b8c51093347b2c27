package secret

import (
	"errors"
	"fmt"
)

var ErrNoAPIKey = errors.New("no API key configured")

type ErrSecretNotFound struct {
	Key string
	Err error
}

func (e *ErrSecretNotFound) Error() string {
	return fmt.Sprintf("key %s not found: %s", e.Key, e.Err)
}

func (e *ErrSecretNotFound) Is(target error) bool {
	_, ok := target.(*ErrSecretNotFound)
	return ok
}

func (e *ErrSecretNotFound) Unwrap() error {
	return e.Err
}

type ErrSecretTooLarge struct {
	Key string
	Err error
}

func (e *ErrSecretTooLarge) Error() string {
	return fmt.Sprintf("secret %s is too large: %s", e.Key, e.Err)
}

func (e *ErrSecretTooLarge) Unwrap() error {
	return e.Err
}
