package listener

import (
	"fmt"
	"net"
)

// TCPProvider listens on a host:port address. The server owns the listener
// once Create returns, so Close has nothing to release.
type TCPProvider struct {
	address string
}

var _ Provider = (*TCPProvider)(nil)

func NewTCPListenerProvider(address string) *TCPProvider {
	return &TCPProvider{address: address}
}

func (p *TCPProvider) Create() (net.Listener, error) {
	ln, err := net.Listen("tcp", p.address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", p.address, err)
	}
	return ln, nil
}

func (p *TCPProvider) Close() error { return nil }

func (p *TCPProvider) ActivationType() string { return "tcp" }

// IsLoopback reports whether addr is only reachable from this machine. Unix
// sockets count as local.
func IsLoopback(addr net.Addr) bool {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return a.IP.IsLoopback()
	case *net.UnixAddr:
		return true
	default:
		return false
	}
}
