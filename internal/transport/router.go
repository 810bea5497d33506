package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/nao1215/onionharvest/internal/anomaly"
	"github.com/nao1215/onionharvest/internal/fingerprint"
	"github.com/nao1215/onionharvest/internal/model"
)

// ClientFactory builds HTTP clients for one transport.
// *tor.Client and *i2p.Client both satisfy this interface; each call
// returns a fresh client so every attempt can carry its own TLS
// fingerprint.
type ClientFactory interface {
	NewHTTPClient(tlsConfig *tls.Config) *http.Client
}

// Router performs single fetch attempts over the configured transports.
// It holds no per-target state; retry and escalation decisions belong to
// the caller.
type Router struct {
	// primary is the Tor transport factory.
	primary ClientFactory

	// fallback is the I2P transport factory. nil when fallback is
	// disabled.
	fallback ClientFactory

	// maxBodySize is the truncation limit for response bodies.
	maxBodySize int64

	// minContentLength is the minimum body size for a success response to
	// count as content.
	minContentLength int

	sink   anomaly.Sink
	logger *slog.Logger
}

// NewRouter creates a router over the given transport factories.
// fallback may be nil; routing to it then returns ErrFallbackUnavailable.
func NewRouter(primary, fallback ClientFactory, maxBodySize int64, minContentLength int, sink anomaly.Sink, logger *slog.Logger) *Router {
	if sink == nil {
		sink = anomaly.NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Router{
		primary:          primary,
		fallback:         fallback,
		maxBodySize:      maxBodySize,
		minContentLength: minContentLength,
		sink:             sink,
		logger:           logger,
	}
}

// HasFallback reports whether a fallback transport is configured.
func (r *Router) HasFallback() bool {
	return r.fallback != nil
}

// Fetch performs one attempt against the target over the given transport
// with the given client identity. On failure it returns a *FetchError,
// except for context cancellation, which propagates unchanged so callers
// can tell a stopped run from a failed target.
func (r *Router) Fetch(ctx context.Context, target model.Target, kind model.TransportKind, id fingerprint.Identity) (*model.RawDocument, error) {
	factory := r.primary
	if kind == model.TransportFallback {
		if r.fallback == nil {
			return nil, ErrFallbackUnavailable
		}
		factory = r.fallback
	}

	// Pre-request jitter breaks timing regularity between attempts.
	if id.Jitter > 0 {
		select {
		case <-time.After(id.Jitter):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.Normalized, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindProtocolError, Detail: "invalid request", Err: err}
	}
	id.Apply(req)

	client := factory.NewHTTPClient(id.TLSConfig())
	start := time.Now()

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, classifyErr(err)
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort cleanup

	// Read one byte past the limit to distinguish "exactly at the limit"
	// from "truncated".
	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBodySize+1))
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, classifyErr(err)
	}

	truncated := false
	if int64(len(body)) > r.maxBodySize {
		truncated = true
		body = body[:r.maxBodySize]
		r.sink.Report(anomaly.Observation{
			Kind:   anomaly.KindTruncatedBody,
			Target: target.AddressHash(),
			Detail: fmt.Sprintf("body exceeded %d bytes", r.maxBodySize),
		})
	}

	elapsed := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{Kind: KindHTTPStatus, StatusCode: resp.StatusCode}
	}

	if len(body) < r.minContentLength {
		r.sink.Report(anomaly.Observation{
			Kind:   anomaly.KindEmptyBody,
			Target: target.AddressHash(),
			Detail: fmt.Sprintf("%d bytes with status %d", len(body), resp.StatusCode),
		})
		return nil, &FetchError{
			Kind:   KindEmptyBody,
			Detail: fmt.Sprintf("%d bytes below minimum %d", len(body), r.minContentLength),
		}
	}

	r.logger.Debug("fetch succeeded",
		"target", target.AddressHash(),
		"transport", kind.String(),
		"status", resp.StatusCode,
		"bytes", len(body),
		"elapsed", elapsed,
	)

	return &model.RawDocument{
		URL:        target.Normalized,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
		Truncated:  truncated,
		Transport:  kind,
		FetchedAt:  start,
		Elapsed:    elapsed,
	}, nil
}

// classifyErr maps a transport-level error to a *FetchError.
func classifyErr(err error) *FetchError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &FetchError{Kind: KindTimeout, Detail: "request timed out", Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Kind: KindTimeout, Detail: "request timed out", Err: err}
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return &FetchError{Kind: KindConnectionRefused, Detail: "connection refused", Err: err}
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &FetchError{Kind: KindProtocolError, Detail: "connection closed mid-response", Err: err}
	}

	// The SOCKS5 dialer reports onion-side failures as plain errors;
	// match the common ones by message.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return &FetchError{Kind: KindConnectionRefused, Detail: "connection refused", Err: err}
	case strings.Contains(msg, "host unreachable"), strings.Contains(msg, "network unreachable"):
		return &FetchError{Kind: KindConnectionRefused, Detail: "service unreachable", Err: err}
	case strings.Contains(msg, "malformed"), strings.Contains(msg, "bad response"):
		return &FetchError{Kind: KindProtocolError, Detail: "malformed response", Err: err}
	}

	return &FetchError{Kind: KindUnknown, Detail: "transport error", Err: err}
}
