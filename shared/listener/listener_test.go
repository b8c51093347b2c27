package listener

import (
	"net"
	"os"
	"path/filepath"
	"testing"
)

func TestDetectProvider(t *testing.T) {
	t.Setenv("LISTEN_FDS", "")

	tests := []struct {
		name       string
		http       string
		unix       string
		activation string
		wantErr    bool
	}{
		{name: "tcp wins", http: "127.0.0.1:0", unix: "/tmp/seyal.sock", activation: "tcp"},
		{name: "unix", unix: "/tmp/seyal.sock", activation: "unix"},
		{name: "nothing configured", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := DetectProvider(tt.http, tt.unix)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if provider.ActivationType() != tt.activation {
				t.Errorf("expected %s, got %s", tt.activation, provider.ActivationType())
			}
		})
	}
}

func TestTCPProvider_Create(t *testing.T) {
	provider := NewTCPListenerProvider("127.0.0.1:0")
	l, err := provider.Create()
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	defer l.Close()

	if l.Addr().Network() != "tcp" {
		t.Errorf("expected tcp listener, got %s", l.Addr().Network())
	}
}

func TestUnixSocketProvider_CreateAndClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seyal.sock")
	provider := NewUnixSocketProvider(path)

	l, err := provider.Create()
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	if l.Addr().Network() != "unix" {
		t.Errorf("expected unix listener, got %s", l.Addr().Network())
	}

	if err := provider.Close(); err != nil {
		t.Fatalf("failed to close provider: %v", err)
	}
}

func TestIsLoopback(t *testing.T) {
	tests := []struct {
		name string
		addr net.Addr
		want bool
	}{
		{name: "ipv4 loopback", addr: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 8080}, want: true},
		{name: "ipv6 loopback", addr: &net.TCPAddr{IP: net.IPv6loopback, Port: 8080}, want: true},
		{name: "wildcard", addr: &net.TCPAddr{IP: net.IPv4zero, Port: 8080}, want: false},
		{name: "lan", addr: &net.TCPAddr{IP: net.IPv4(192, 168, 1, 10), Port: 8080}, want: false},
		{name: "unix socket", addr: &net.UnixAddr{Name: "/tmp/seyal.sock", Net: "unix"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsLoopback(tt.addr); got != tt.want {
				t.Errorf("IsLoopback(%v) = %v, want %v", tt.addr, got, tt.want)
			}
		})
	}
}

func TestUnixSocketProvider_RefusesRegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seyal.sock")
	if err := os.WriteFile(path, []byte("keep me"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewUnixSocketProvider(path).Create(); err == nil {
		t.Fatal("expected error for a regular file at the socket path")
	}
	if data, err := os.ReadFile(path); err != nil || string(data) != "keep me" {
		t.Errorf("file was modified: %q, %v", data, err)
	}
}

func TestSystemdSocketProvider_NotActivated(t *testing.T) {
	t.Setenv("LISTEN_FDS", "")
	t.Setenv("LISTEN_PID", "")

	if IsSystemdSocketActivation() {
		t.Fatal("expected no socket activation")
	}
	if _, err := NewSystemdSocketProvider().Create(); err == nil {
		t.Fatal("expected error without socket activation")
	}
}
