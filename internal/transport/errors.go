package transport

import (
	"errors"
	"fmt"
)

// ErrFallbackUnavailable is returned when a fetch is routed to the
// fallback transport but no fallback client is configured.
var ErrFallbackUnavailable = errors.New("fallback transport not configured")

// FetchErrorKind classifies a failed fetch attempt.
type FetchErrorKind int

const (
	// KindTimeout covers connection and response timeouts.
	KindTimeout FetchErrorKind = iota

	// KindConnectionRefused covers refused or reset connections,
	// including SOCKS-level failures to reach the service.
	KindConnectionRefused

	// KindProtocolError covers malformed responses and connections that
	// died mid-exchange.
	KindProtocolError

	// KindHTTPStatus covers responses with a non-success status code.
	// StatusCode carries the code; Retryable() depends on it.
	KindHTTPStatus

	// KindEmptyBody covers success responses whose body is below the
	// minimum content length. Overloaded hidden services produce these;
	// they usually resolve on retry.
	KindEmptyBody

	// KindUnknown covers everything else.
	KindUnknown
)

// String returns the kind name used in logs.
func (k FetchErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnectionRefused:
		return "connection_refused"
	case KindProtocolError:
		return "protocol_error"
	case KindHTTPStatus:
		return "http_status"
	case KindEmptyBody:
		return "empty_body"
	default:
		return "unknown"
	}
}

// retryableStatuses are the HTTP status codes worth retrying. Server
// errors and throttling responses are transient by nature; client errors
// like 404 or 403 will not change on retry.
var retryableStatuses = map[int]bool{
	500: true,
	502: true,
	503: true,
	504: true,
	408: true,
	429: true,
}

// FetchError describes one failed fetch attempt.
type FetchError struct {
	// Kind classifies the failure.
	Kind FetchErrorKind

	// StatusCode is set when Kind is KindHTTPStatus.
	StatusCode int

	// Detail is a short human-readable description.
	Detail string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("fetch failed: %s %d", e.Kind, e.StatusCode)
	}
	if e.Detail != "" {
		return fmt.Sprintf("fetch failed: %s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("fetch failed: %s", e.Kind)
}

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt could plausibly succeed.
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindConnectionRefused, KindProtocolError, KindEmptyBody:
		return true
	case KindHTTPStatus:
		return retryableStatuses[e.StatusCode]
	default:
		return false
	}
}

// CircuitRelated reports whether the failure may be caused by a bad
// Tor circuit rather than the target itself. Such failures qualify for
// rotation before the next attempt: a fresh circuit takes a different
// path through the network.
func (e *FetchError) CircuitRelated() bool {
	switch e.Kind {
	case KindTimeout, KindConnectionRefused, KindProtocolError, KindEmptyBody:
		return true
	case KindHTTPStatus:
		return retryableStatuses[e.StatusCode]
	default:
		return false
	}
}
