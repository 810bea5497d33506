package pipeline

import "errors"

var (
	// ErrNoRawDocument is returned when a step requires a fetched document
	// but the document carries no raw response.
	ErrNoRawDocument = errors.New("pipeline: document has no raw response")

	// ErrNoSanitizedContent is returned when a step requires sanitized HTML
	// but the sanitize step has not run or produced nothing.
	ErrNoSanitizedContent = errors.New("pipeline: document has no sanitized content")

	// ErrInvalidChunkWindow is returned when the chunk size and overlap
	// do not leave room for the window to advance.
	ErrInvalidChunkWindow = errors.New("pipeline: chunk overlap must be smaller than chunk size")
)
