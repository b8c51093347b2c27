package shared

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/adrg/xdg"
	"github.com/spf13/afero"
)

const AppName = "seyal"

// UserInfo resolves the per-user directories seyal keeps its config, database
// and logs in.
type UserInfo interface {
	HomeDir() (string, error)
	ConfigDir() (string, error)
	DataDir() (string, error)
	LogDir() (string, error)
}

type DefaultUserInfo struct {
	fs *afero.Afero
}

func NewDefaultUserInfo(fs *afero.Afero) *DefaultUserInfo {
	return &DefaultUserInfo{fs: fs}
}

func (u *DefaultUserInfo) HomeDir() (string, error) {
	return os.UserHomeDir()
}

func (u *DefaultUserInfo) ConfigDir() (string, error) {
	return u.ensure(filepath.Join(xdg.ConfigHome, AppName), "config")
}

func (u *DefaultUserInfo) DataDir() (string, error) {
	return u.ensure(filepath.Join(xdg.DataHome, AppName), "data")
}

func (u *DefaultUserInfo) LogDir() (string, error) {
	var logDir string
	switch runtime.GOOS {
	case "darwin":
		homeDir, err := u.HomeDir()
		if err != nil {
			return "", err
		}
		logDir = filepath.Join(homeDir, "Library", "Logs", AppName)
	default:
		logDir = filepath.Join(xdg.StateHome, AppName)
	}

	return u.ensure(logDir, "log")
}

func (u *DefaultUserInfo) ensure(dir, kind string) (string, error) {
	if err := u.fs.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", kind, err)
	}
	return dir, nil
}

var _ UserInfo = (*DefaultUserInfo)(nil)

// StaticUserInfo roots every directory under a single base path.
type StaticUserInfo struct {
	Base string
}

func (u StaticUserInfo) HomeDir() (string, error)   { return u.Base, nil }
func (u StaticUserInfo) ConfigDir() (string, error) { return filepath.Join(u.Base, "config"), nil }
func (u StaticUserInfo) DataDir() (string, error)   { return filepath.Join(u.Base, "data"), nil }
func (u StaticUserInfo) LogDir() (string, error)    { return filepath.Join(u.Base, "log"), nil }

var _ UserInfo = StaticUserInfo{}
