package listener

import (
	"fmt"
	"net"
)

// Provider hands the web server a ready listener.
type Provider interface {
	Create() (net.Listener, error)
	Close() error
	ActivationType() string
}

// DetectProvider prefers an explicit address, then a unix socket, then systemd
// socket activation.
func DetectProvider(httpAddress, unixSocket string) (Provider, error) {
	switch {
	case httpAddress != "":
		return NewTCPListenerProvider(httpAddress), nil
	case unixSocket != "":
		return NewUnixSocketProvider(unixSocket), nil
	case IsSystemdSocketActivation():
		return NewSystemdSocketProvider(), nil
	default:
		return nil, fmt.Errorf("no listener configured: set an http address or a unix socket")
	}
}
