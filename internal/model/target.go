package model

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// Target is a fetch target created from the input address list.
// It carries the raw input, the normalized URL, and the content-address
// used for deduplication and storage keys.
//
// Design decision: The content-address is a hash of the normalized URL,
// not of the fetched body. This matches "have we fetched this address
// before" semantics: re-fetching an address whose content changed does
// not re-ingest it. This is a deliberate policy choice, not an oversight.
type Target struct {
	// Raw is the address string exactly as provided in the input list.
	Raw string

	// Normalized is the canonical form of the URL: lowercased scheme
	// and host, path preserved as given. Empty if Raw is not parseable.
	Normalized string

	// ContentAddress is the hex-encoded SHA-256 hash of the normalized
	// URL. It is the deduplication and storage key, and the only form
	// of the address that may appear in logs and summaries.
	ContentAddress string

	// Validated is set once the target has passed address validation.
	Validated bool
}

// NewTarget creates a Target from a raw address string.
// Normalization lowercases the scheme and host; the path, query, and
// fragment are preserved byte for byte because hidden services may be
// case-sensitive there.
//
// The content-address is always computed, even for unparseable input,
// so that invalid targets can still be reported by hash in summaries.
func NewTarget(raw string) Target {
	t := Target{Raw: strings.TrimSpace(raw)}

	if u, err := url.Parse(t.Raw); err == nil && u.Scheme != "" && u.Host != "" {
		u.Scheme = strings.ToLower(u.Scheme)
		u.Host = strings.ToLower(u.Host)
		t.Normalized = u.String()
	}

	// Hash the normalized form when available, the raw input otherwise.
	subject := t.Normalized
	if subject == "" {
		subject = t.Raw
	}
	sum := sha256.Sum256([]byte(subject))
	t.ContentAddress = hex.EncodeToString(sum[:])

	return t
}

// Host returns the hostname of the normalized URL, or an empty string
// if the target could not be parsed.
func (t Target) Host() string {
	u, err := url.Parse(t.Normalized)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// AddressHash returns a short prefix of the content-address suitable
// for log output. Twelve hex characters are enough to distinguish
// targets within a run without exposing the address itself.
func (t Target) AddressHash() string {
	if len(t.ContentAddress) < 12 {
		return t.ContentAddress
	}
	return t.ContentAddress[:12]
}
