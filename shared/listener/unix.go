package listener

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
)

// UnixSocketProvider serves on a socket file that only the current user can
// connect to. A stale socket from a previous run is replaced; any other file
// at the path is left alone.
type UnixSocketProvider struct {
	path string
	ln   net.Listener
}

var _ Provider = (*UnixSocketProvider)(nil)

func NewUnixSocketProvider(path string) *UnixSocketProvider {
	return &UnixSocketProvider{path: path}
}

func (p *UnixSocketProvider) Create() (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}
	if err := removeStaleSocket(p.path); err != nil {
		return nil, err
	}

	ln, err := net.Listen("unix", p.path)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", p.path, err)
	}
	if err := os.Chmod(p.path, 0o600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}

	p.ln = ln
	return ln, nil
}

func removeStaleSocket(path string) error {
	info, err := os.Lstat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("inspect %s: %w", path, err)
	case info.Mode()&fs.ModeSocket == 0:
		return fmt.Errorf("%s exists and is not a socket", path)
	}
	return os.Remove(path)
}

// Close removes the socket file.
func (p *UnixSocketProvider) Close() error {
	if p.ln != nil {
		p.ln.Close()
	}
	if err := os.Remove(p.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove socket: %w", err)
	}
	return nil
}

func (p *UnixSocketProvider) ActivationType() string { return "unix" }
