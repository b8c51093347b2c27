package secret

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// FileProvider keeps one secret per file below dir. It is the fallback for
// machines without a usable keyring.
type FileProvider struct {
	fs  afero.Fs
	dir string
}

func NewFileProvider(fs afero.Fs, dir string) (*FileProvider, error) {
	if err := fs.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create secret directory %s: %w", dir, err)
	}
	return &FileProvider{fs: fs, dir: dir}, nil
}

func (fp *FileProvider) path(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("invalid secret key %q", key)
	}
	return filepath.Join(fp.dir, key), nil
}

func (fp *FileProvider) Get(key string) (string, error) {
	path, err := fp.path(key)
	if err != nil {
		return "", err
	}

	data, err := afero.ReadFile(fp.fs, path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return "", &ErrSecretNotFound{Key: key, Err: err}
	case err != nil:
		return "", fmt.Errorf("read secret %s: %w", key, err)
	}
	return string(data), nil
}

// Set replaces the secret through a temporary file so a crash never leaves a
// truncated value behind.
func (fp *FileProvider) Set(key string, value string) error {
	path, err := fp.path(key)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := afero.WriteFile(fp.fs, tmp, []byte(value), 0o600); err != nil {
		return fmt.Errorf("write secret %s: %w", key, err)
	}
	if err := fp.fs.Rename(tmp, path); err != nil {
		_ = fp.fs.Remove(tmp)
		return fmt.Errorf("store secret %s: %w", key, err)
	}
	return nil
}

// Delete succeeds when the secret does not exist.
func (fp *FileProvider) Delete(key string) error {
	path, err := fp.path(key)
	if err != nil {
		return err
	}

	if err := fp.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete secret %s: %w", key, err)
	}
	return nil
}
