package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nao1215/onionharvest/internal/database"
	"github.com/nao1215/onionharvest/internal/model"
	"github.com/nao1215/onionharvest/internal/pipeline"
)

// ErrEmptyContent is returned when a document yields no extractable text.
// This is terminal: refetching the same body would produce the same result.
var ErrEmptyContent = errors.New("ingest: document has no extractable text")

// Storage persists processed documents. *database.IngestDB satisfies it.
type Storage interface {
	// HasIngested reports whether a content-address is already stored.
	HasIngested(ctx context.Context, contentAddress string) (bool, error)

	// SaveDocument stores a document and its chunks, returning the chunk
	// count. Must return database.ErrAlreadyIngested on a duplicate
	// content-address.
	SaveDocument(ctx context.Context, doc *model.Document) (int, error)
}

// Coordinator deduplicates and stores fetched documents. Each document is
// stored at most once per content-address: the in-memory claim set makes
// the check-and-mark atomic across concurrent workers within a run, and
// the storage layer's unique key covers documents stored by earlier runs.
type Coordinator struct {
	// mu guards claimed.
	mu sync.Mutex

	// claimed holds content-addresses taken by an in-flight or completed
	// ingest in this run.
	claimed map[string]bool

	// storage persists documents and backs dedup across runs.
	storage Storage

	// pipeline turns a raw document into sanitized, extracted, chunked form.
	pipeline *pipeline.Pipeline

	// logger for structured logging.
	logger *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets a custom logger for the coordinator.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// NewCoordinator creates a Coordinator backed by the given storage and
// content pipeline.
func NewCoordinator(storage Storage, p *pipeline.Pipeline, opts ...Option) *Coordinator {
	c := &Coordinator{
		claimed:  make(map[string]bool),
		storage:  storage,
		pipeline: p,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c
}

// AlreadyIngested reports whether a target's content-address has been
// stored by this run or a previous one. Used to skip fetching entirely.
func (c *Coordinator) AlreadyIngested(ctx context.Context, target model.Target) (bool, error) {
	c.mu.Lock()
	claimed := c.claimed[target.ContentAddress]
	c.mu.Unlock()
	if claimed {
		return true, nil
	}

	stored, err := c.storage.HasIngested(ctx, target.ContentAddress)
	if err != nil {
		return false, fmt.Errorf("ingest: dedup lookup: %w", err)
	}
	return stored, nil
}

// Ingest processes a fetched document through the content pipeline and
// stores the result, returning the number of chunks stored. A duplicate
// content-address returns zero chunks without error. A document with no
// extractable text returns ErrEmptyContent. Storage failures are retried
// once; on the second failure the claim is released so a later run can
// retry the address, and the document is discarded.
func (c *Coordinator) Ingest(ctx context.Context, doc *model.Document) (int, error) {
	addr := doc.Target.ContentAddress

	c.mu.Lock()
	if c.claimed[addr] {
		c.mu.Unlock()
		c.logger.Debug("skipping duplicate document", "target", doc.Target.AddressHash())
		return 0, nil
	}
	c.claimed[addr] = true
	c.mu.Unlock()

	chunks, err := c.ingestClaimed(ctx, doc)
	if err != nil {
		c.mu.Lock()
		delete(c.claimed, addr)
		c.mu.Unlock()
		return 0, err
	}
	return chunks, nil
}

// ingestClaimed runs the pipeline and stores the document. The caller
// holds the claim and releases it if an error is returned.
func (c *Coordinator) ingestClaimed(ctx context.Context, doc *model.Document) (int, error) {
	if err := c.pipeline.Execute(ctx, doc); err != nil {
		return 0, fmt.Errorf("ingest: pipeline: %w", err)
	}

	if doc.Text == "" {
		return 0, ErrEmptyContent
	}

	chunks, err := c.storage.SaveDocument(ctx, doc)
	if errors.Is(err, database.ErrAlreadyIngested) {
		c.logger.Debug("document already stored", "target", doc.Target.AddressHash())
		return 0, nil
	}
	if err != nil {
		c.logger.Warn("storage failed, retrying once",
			"target", doc.Target.AddressHash(),
			"error", err,
		)
		chunks, err = c.storage.SaveDocument(ctx, doc)
		if errors.Is(err, database.ErrAlreadyIngested) {
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("ingest: storage: %w", err)
		}
	}

	c.logger.Info("document ingested",
		"target", doc.Target.AddressHash(),
		"title_present", doc.Title != "",
		"chunks", chunks,
	)

	return chunks, nil
}
