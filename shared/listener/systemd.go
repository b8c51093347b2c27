package listener

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
)

// First file descriptor passed by systemd socket activation (SD_LISTEN_FDS_START).
const listenFDsStart = 3

type SystemdSocketProvider struct{}

var _ Provider = (*SystemdSocketProvider)(nil)

func NewSystemdSocketProvider() *SystemdSocketProvider {
	return &SystemdSocketProvider{}
}

// Create takes the first socket systemd handed over. The activation variables
// are cleared so child processes do not try to claim the same descriptors.
func (p *SystemdSocketProvider) Create() (net.Listener, error) {
	if !IsSystemdSocketActivation() {
		return nil, errors.New("not started by systemd socket activation")
	}

	count, err := strconv.Atoi(os.Getenv("LISTEN_FDS"))
	if err != nil || count < 1 {
		return nil, fmt.Errorf("systemd passed no sockets (LISTEN_FDS=%q)", os.Getenv("LISTEN_FDS"))
	}
	defer func() {
		os.Unsetenv("LISTEN_PID")
		os.Unsetenv("LISTEN_FDS")
		os.Unsetenv("LISTEN_FDNAMES")
	}()

	file := os.NewFile(uintptr(listenFDsStart), "systemd-socket")
	if file == nil {
		return nil, fmt.Errorf("descriptor %d is not open", listenFDsStart)
	}
	defer file.Close()

	ln, err := net.FileListener(file)
	if err != nil {
		return nil, fmt.Errorf("use systemd socket: %w", err)
	}
	return ln, nil
}

func (p *SystemdSocketProvider) Close() error { return nil }

func (p *SystemdSocketProvider) ActivationType() string { return "systemd" }

// IsSystemdSocketActivation reports whether systemd passed sockets to this
// process.
func IsSystemdSocketActivation() bool {
	return os.Getenv("LISTEN_FDS") != "" && os.Getenv("LISTEN_PID") == strconv.Itoa(os.Getpid())
}
