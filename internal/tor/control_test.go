package tor

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// startMockControlServer starts a minimal control port server for one
// connection. wantAuth is the exact AUTHENTICATE argument expected (empty
// for null auth); rejectSignal makes the server refuse SIGNAL NEWNYM.
func startMockControlServer(t *testing.T, wantAuth string, rejectSignal bool) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to start mock control server: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		reader := bufio.NewReader(conn)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimRight(line, "\r\n")

			switch {
			case strings.HasPrefix(line, "AUTHENTICATE"):
				arg := strings.TrimSpace(strings.TrimPrefix(line, "AUTHENTICATE"))
				if arg == wantAuth {
					_, _ = conn.Write([]byte("250 OK\r\n"))
				} else {
					_, _ = conn.Write([]byte("515 Authentication failed\r\n"))
				}
			case line == "SIGNAL NEWNYM":
				if rejectSignal {
					_, _ = conn.Write([]byte("552 Unrecognized signal\r\n"))
				} else {
					_, _ = conn.Write([]byte("250 OK\r\n"))
				}
			case line == "QUIT":
				_, _ = conn.Write([]byte("250 closing connection\r\n"))
				return
			default:
				_, _ = conn.Write([]byte("510 Unrecognized command\r\n"))
			}
		}
	}()

	return listener.Addr().String()
}

// TestNewControlClient tests the ControlClient constructor.
func TestNewControlClient(t *testing.T) {
	t.Parallel()

	t.Run("valid address creates client", func(t *testing.T) {
		t.Parallel()

		client, err := NewControlClient("127.0.0.1:9051", ControlAuth{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.Address() != "127.0.0.1:9051" {
			t.Errorf("Address() = %q, expected %q", client.Address(), "127.0.0.1:9051")
		}
	})

	t.Run("invalid address returns error", func(t *testing.T) {
		t.Parallel()

		_, err := NewControlClient("not-an-address", ControlAuth{})
		if !errors.Is(err, ErrInvalidProxyAddress) {
			t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
		}
	})
}

// TestSignalNewCircuit tests the NEWNYM signal exchange.
func TestSignalNewCircuit(t *testing.T) {
	t.Parallel()

	t.Run("null auth succeeds", func(t *testing.T) {
		t.Parallel()

		addr := startMockControlServer(t, "", false)
		client, err := NewControlClient(addr, ControlAuth{})
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		if err := client.SignalNewCircuit(context.Background()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("password auth succeeds", func(t *testing.T) {
		t.Parallel()

		addr := startMockControlServer(t, `"hunter2"`, false)
		client, err := NewControlClient(addr, ControlAuthFromPassword("hunter2"))
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		if err := client.SignalNewCircuit(context.Background()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("cookie auth sends hex-encoded cookie", func(t *testing.T) {
		t.Parallel()

		cookie := []byte{0xde, 0xad, 0xbe, 0xef, 0x01, 0x02, 0x03, 0x04}
		cookiePath := filepath.Join(t.TempDir(), "control_auth_cookie")
		if err := os.WriteFile(cookiePath, cookie, 0o600); err != nil {
			t.Fatalf("failed to write cookie file: %v", err)
		}

		addr := startMockControlServer(t, hex.EncodeToString(cookie), false)
		client, err := NewControlClient(addr, ControlAuthFromCookie(cookiePath))
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		if err := client.SignalNewCircuit(context.Background()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("missing cookie file returns auth error", func(t *testing.T) {
		t.Parallel()

		addr := startMockControlServer(t, "", false)
		client, err := NewControlClient(addr, ControlAuthFromCookie(filepath.Join(t.TempDir(), "missing")))
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		err = client.SignalNewCircuit(context.Background())
		if !errors.Is(err, ErrControlAuthFailed) {
			t.Errorf("expected ErrControlAuthFailed, got %v", err)
		}
	})

	t.Run("wrong password returns auth error", func(t *testing.T) {
		t.Parallel()

		addr := startMockControlServer(t, `"correct"`, false)
		client, err := NewControlClient(addr, ControlAuthFromPassword("wrong"))
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		err = client.SignalNewCircuit(context.Background())
		if !errors.Is(err, ErrControlAuthFailed) {
			t.Errorf("expected ErrControlAuthFailed, got %v", err)
		}
	})

	t.Run("rejected signal returns signal error", func(t *testing.T) {
		t.Parallel()

		addr := startMockControlServer(t, "", true)
		client, err := NewControlClient(addr, ControlAuth{})
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		err = client.SignalNewCircuit(context.Background())
		if !errors.Is(err, ErrControlSignalRejected) {
			t.Errorf("expected ErrControlSignalRejected, got %v", err)
		}
	})

	t.Run("unreachable control port returns unavailable error", func(t *testing.T) {
		t.Parallel()

		client, err := NewControlClient("127.0.0.1:59997", ControlAuth{})
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		err = client.SignalNewCircuit(context.Background())
		if !errors.Is(err, ErrControlUnavailable) {
			t.Errorf("expected ErrControlUnavailable, got %v", err)
		}
	})

	t.Run("cancelled context returns error", func(t *testing.T) {
		t.Parallel()

		addr := startMockControlServer(t, "", false)
		client, err := NewControlClient(addr, ControlAuth{})
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := client.SignalNewCircuit(ctx); err == nil {
			t.Error("expected error for cancelled context")
		}
	})
}

// TestSendCommandMultiline verifies multi-line replies are drained.
func TestSendCommandMultiline(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to start mock server: %v", err)
	}
	defer listener.Close()

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		reader := bufio.NewReader(conn)
		_, _ = reader.ReadString('\n')
		// Intermediate lines use "-" after the code; only the final line
		// uses a space.
		_, _ = conn.Write([]byte("250-first\r\n250-second\r\n250 OK\r\n"))
	}()

	conn, err := net.Dial("tcp", listener.Addr().String()) //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to dial mock server: %v", err)
	}
	defer conn.Close()

	if err := sendCommand(conn, bufio.NewReader(conn), "GETINFO version"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
