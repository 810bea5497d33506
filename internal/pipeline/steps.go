package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/onionharvest/internal/model"
)

// Elements whose subtrees carry no readable content and are stripped
// during sanitization.
var strippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"iframe":   true,
}

// SanitizeStep removes non-content markup from the raw HTML body.
// Scripts, styles, embedded frames, and HTML comments are dropped and the
// remaining tree is re-rendered into Document.Sanitized.
//
// Design decision: We use golang.org/x/net/html rather than regex because
// it correctly handles the malformed HTML common on hidden services and
// gives us a proper tree to prune.
type SanitizeStep struct {
	// logger for structured logging.
	logger *slog.Logger
}

// SanitizeStepOption configures a SanitizeStep.
type SanitizeStepOption func(*SanitizeStep)

// WithSanitizeLogger sets a custom logger for the sanitize step.
func WithSanitizeLogger(logger *slog.Logger) SanitizeStepOption {
	return func(s *SanitizeStep) {
		s.logger = logger
	}
}

// NewSanitizeStep creates a new sanitization step.
func NewSanitizeStep(opts ...SanitizeStepOption) *SanitizeStep {
	s := &SanitizeStep{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *SanitizeStep) Name() string {
	return "sanitize"
}

// Do executes the sanitization step.
func (s *SanitizeStep) Do(_ context.Context, doc *model.Document) error {
	if doc.Raw == nil {
		return ErrNoRawDocument
	}

	root, err := html.Parse(bytes.NewReader(doc.Raw.Body))
	if err != nil {
		return fmt.Errorf("pipeline: parse html: %w", err)
	}

	pruneNode(root)

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return fmt.Errorf("pipeline: render html: %w", err)
	}
	doc.Sanitized = buf.String()

	s.logger.Debug("sanitized document",
		"target", doc.Target.AddressHash(),
		"raw_bytes", len(doc.Raw.Body),
		"sanitized_bytes", len(doc.Sanitized),
	)

	return nil
}

// pruneNode removes stripped elements and comment nodes from the subtree
// rooted at n. Children are collected before removal because RemoveChild
// mutates the sibling links walked by the loop.
func pruneNode(n *html.Node) {
	var doomed []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.CommentNode || (c.Type == html.ElementNode && strippedElements[c.Data]) {
			doomed = append(doomed, c)
			continue
		}
		pruneNode(c)
	}
	for _, c := range doomed {
		n.RemoveChild(c)
	}
}

// ExtractStep pulls the page title and readable text out of the sanitized
// HTML. Text is whitespace-normalized so that chunking operates on a flat
// word stream.
type ExtractStep struct {
	// logger for structured logging.
	logger *slog.Logger
}

// ExtractStepOption configures an ExtractStep.
type ExtractStepOption func(*ExtractStep)

// WithExtractLogger sets a custom logger for the extract step.
func WithExtractLogger(logger *slog.Logger) ExtractStepOption {
	return func(s *ExtractStep) {
		s.logger = logger
	}
}

// NewExtractStep creates a new extraction step.
func NewExtractStep(opts ...ExtractStepOption) *ExtractStep {
	s := &ExtractStep{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ExtractStep) Name() string {
	return "extract"
}

// Do executes the extraction step.
func (s *ExtractStep) Do(_ context.Context, doc *model.Document) error {
	if doc.Sanitized == "" {
		return ErrNoSanitizedContent
	}

	root, err := html.Parse(strings.NewReader(doc.Sanitized))
	if err != nil {
		return fmt.Errorf("pipeline: parse sanitized html: %w", err)
	}

	var textContent strings.Builder
	var title string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" {
			if title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			// Title text is metadata, not body text.
			return
		}
		if n.Type == html.TextNode {
			textContent.WriteString(n.Data)
			textContent.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	doc.Title = title
	doc.Text = strings.Join(strings.Fields(textContent.String()), " ")

	s.logger.Debug("extracted document text",
		"target", doc.Target.AddressHash(),
		"title_present", title != "",
		"text_bytes", len(doc.Text),
	)

	return nil
}

// Approximate number of characters per word used to convert
// character-denominated chunk settings into word counts.
const charsPerWord = 5

// ChunkStep splits the extracted text into overlapping word windows.
// Chunk size and overlap are given in characters and converted to word
// counts using an average word length, so window boundaries never split
// a word.
type ChunkStep struct {
	// chunkSize is the target chunk size in characters.
	chunkSize int

	// chunkOverlap is the overlap between consecutive chunks in characters.
	chunkOverlap int

	// logger for structured logging.
	logger *slog.Logger
}

// ChunkStepOption configures a ChunkStep.
type ChunkStepOption func(*ChunkStep)

// WithChunkLogger sets a custom logger for the chunk step.
func WithChunkLogger(logger *slog.Logger) ChunkStepOption {
	return func(s *ChunkStep) {
		s.logger = logger
	}
}

// NewChunkStep creates a new chunking step with the given size and
// overlap in characters.
func NewChunkStep(chunkSize, chunkOverlap int, opts ...ChunkStepOption) *ChunkStep {
	s := &ChunkStep{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ChunkStep) Name() string {
	return "chunk"
}

// Do executes the chunking step.
func (s *ChunkStep) Do(_ context.Context, doc *model.Document) error {
	wordsPerChunk := s.chunkSize / charsPerWord
	overlapWords := s.chunkOverlap / charsPerWord
	stride := wordsPerChunk - overlapWords
	if wordsPerChunk < 1 || stride < 1 {
		return ErrInvalidChunkWindow
	}

	words := strings.Fields(doc.Text)
	if len(words) == 0 {
		doc.Chunks = nil
		return nil
	}

	chunks := make([]model.Chunk, 0, (len(words)+stride-1)/stride)
	for start := 0; start < len(words); start += stride {
		end := min(start+wordsPerChunk, len(words))
		chunks = append(chunks, model.Chunk{
			Index: len(chunks),
			Body:  strings.Join(words[start:end], " "),
		})
		if end == len(words) {
			break
		}
	}
	doc.Chunks = chunks

	s.logger.Debug("chunked document",
		"target", doc.Target.AddressHash(),
		"words", len(words),
		"chunks", len(chunks),
	)

	return nil
}
