package i2p

import (
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"
)

// TestNewClient tests the Client constructor.
func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("valid proxy address creates client", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("127.0.0.1:4444", 60*time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.ProxyAddress() != "127.0.0.1:4444" {
			t.Errorf("ProxyAddress() = %q, expected %q", client.ProxyAddress(), "127.0.0.1:4444")
		}
	})

	t.Run("invalid addresses return error", func(t *testing.T) {
		t.Parallel()

		for _, addr := range []string{"", "127.0.0.1", ":4444", "127.0.0.1:", "127.0.0.1:99999"} {
			if _, err := NewClient(addr, time.Second); !errors.Is(err, ErrInvalidProxyAddress) {
				t.Errorf("NewClient(%q): expected ErrInvalidProxyAddress, got %v", addr, err)
			}
		}
	})
}

// TestNewHTTPClient tests HTTP client configuration.
func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	client, err := NewClient("127.0.0.1:4444", 45*time.Second)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	httpClient := client.NewHTTPClient(nil)

	t.Run("timeout is set", func(t *testing.T) {
		t.Parallel()
		if httpClient.Timeout != 45*time.Second {
			t.Errorf("Timeout = %v, expected 45s", httpClient.Timeout)
		}
	})

	t.Run("no cookie jar", func(t *testing.T) {
		t.Parallel()
		if httpClient.Jar != nil {
			t.Error("expected nil cookie jar")
		}
	})

	t.Run("proxy points at the I2P endpoint", func(t *testing.T) {
		t.Parallel()

		transport, ok := httpClient.Transport.(*http.Transport)
		if !ok {
			t.Fatal("expected transport to be *http.Transport")
		}
		if transport.Proxy == nil {
			t.Fatal("expected proxy function to be set")
		}

		req, err := http.NewRequest(http.MethodGet, "http://example.i2p/", nil) //nolint:noctx // test code
		if err != nil {
			t.Fatalf("failed to create request: %v", err)
		}
		proxyURL, err := transport.Proxy(req)
		if err != nil {
			t.Fatalf("proxy func returned error: %v", err)
		}
		want := &url.URL{Scheme: "http", Host: "127.0.0.1:4444"}
		if proxyURL.String() != want.String() {
			t.Errorf("proxy URL = %q, expected %q", proxyURL, want)
		}
	})

	t.Run("compression disabled", func(t *testing.T) {
		t.Parallel()

		transport, ok := httpClient.Transport.(*http.Transport)
		if !ok {
			t.Fatal("expected transport to be *http.Transport")
		}
		if !transport.DisableCompression {
			t.Error("expected DisableCompression to be true")
		}
	})
}
