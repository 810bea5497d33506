package model

import (
	"net/http"
	"time"
)

// TransportKind identifies which transport carried a fetch attempt.
type TransportKind int

const (
	// TransportPrimary routes through the Tor SOCKS5 proxy.
	TransportPrimary TransportKind = iota

	// TransportFallback routes through the I2P HTTP proxy.
	TransportFallback
)

// String returns the transport name for logging and persistence.
func (k TransportKind) String() string {
	switch k {
	case TransportPrimary:
		return "tor"
	case TransportFallback:
		return "i2p"
	default:
		return "unknown"
	}
}

// RawDocument is the raw result of one successful fetch attempt.
// It holds the response body before any content processing.
type RawDocument struct {
	// URL is the normalized URL the document was fetched from.
	URL string

	// StatusCode is the HTTP response status code.
	StatusCode int

	// Headers contains the HTTP response headers.
	Headers http.Header

	// Body is the raw response body, truncated to the configured
	// maximum body size.
	Body []byte

	// Truncated indicates the body exceeded the size ceiling and
	// was cut at the limit.
	Truncated bool

	// Transport identifies which transport carried the request.
	Transport TransportKind

	// FetchedAt is when the response was received.
	FetchedAt time.Time

	// Elapsed is the request duration.
	Elapsed time.Duration
}

// Document is a raw document moving through the content pipeline.
// Pipeline steps fill in the processed fields as they run.
type Document struct {
	// Target is the fetch target the document belongs to.
	Target Target

	// Raw is the fetched document.
	Raw *RawDocument

	// Sanitized is the HTML after script/style/comment removal.
	// Populated by the sanitize step.
	Sanitized string

	// Title is the page title from the <title> tag, if any.
	// Populated by the extract step.
	Title string

	// Text is the whitespace-normalized plain text extracted from
	// the sanitized HTML. Populated by the extract step.
	Text string

	// Chunks are the overlapping text windows produced by the chunk
	// step, ready for embedding and storage.
	Chunks []Chunk
}

// Chunk is one text window cut from a document for storage.
type Chunk struct {
	// Index is the zero-based position of the chunk in the document.
	Index int

	// Body is the chunk text.
	Body string
}
