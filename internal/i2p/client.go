package i2p

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrInvalidProxyAddress is returned when the proxy address format is invalid.
// Expected format is "host:port".
var ErrInvalidProxyAddress = errors.New("invalid I2P proxy address format: expected host:port")

// Client provides connectivity through an I2P HTTP proxy.
// Unlike the Tor client, which speaks SOCKS5, the standard I2P HTTP
// proxy (port 4444) is a plain HTTP proxy; requests are routed with
// http.Transport's proxy support.
type Client struct {
	// proxyURL is the parsed proxy endpoint.
	proxyURL *url.URL

	// timeout is the default timeout for HTTP clients built by this client.
	timeout time.Duration
}

// NewClient creates an I2P client for the given HTTP proxy address.
// The address must be in "host:port" format (e.g., "127.0.0.1:4444").
// The constructor does not contact the proxy.
func NewClient(proxyAddress string, timeout time.Duration) (*Client, error) {
	if !isValidProxyAddress(proxyAddress) {
		return nil, ErrInvalidProxyAddress
	}

	proxyURL, err := url.Parse("http://" + proxyAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to parse proxy address: %w", err)
	}

	return &Client{
		proxyURL: proxyURL,
		timeout:  timeout,
	}, nil
}

// isValidProxyAddress checks if the address is in "host:port" format.
func isValidProxyAddress(address string) bool {
	parts := strings.Split(address, ":")
	if len(parts) != 2 {
		return false
	}

	host, port := parts[0], parts[1]
	if host == "" || port == "" {
		return false
	}

	portNum := 0
	for _, c := range port {
		if c < '0' || c > '9' {
			return false
		}
		portNum = portNum*10 + int(c-'0')
		if portNum > 65535 {
			return false
		}
	}

	return portNum >= 1
}

// NewHTTPClient creates an HTTP client routed through the I2P proxy using
// the given TLS configuration. Passing nil uses a default configuration.
// The same per-call transport and no-cookie-jar policy applies as on the
// primary transport: each attempt presents a fresh identity.
func (c *Client) NewHTTPClient(tlsConfig *tls.Config) *http.Client {
	if tlsConfig == nil {
		tlsConfig = &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // Hidden services use self-signed certificates
		}
	}

	transport := &http.Transport{
		Proxy:               http.ProxyURL(c.proxyURL),
		TLSClientConfig:     tlsConfig,
		MaxIdleConns:        2,
		MaxIdleConnsPerHost: 1,
		IdleConnTimeout:     30 * time.Second,
		DisableCompression:  true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// ProxyAddress returns the configured proxy address in "host:port" format.
func (c *Client) ProxyAddress() string {
	return c.proxyURL.Host
}
