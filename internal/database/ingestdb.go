package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/onionharvest/internal/model"
)

// ErrAlreadyIngested is returned when a document's content-address is
// already present in the store.
var ErrAlreadyIngested = errors.New("database: content-address already ingested")

// ErrNoRawDocument is returned when a document without a fetched response
// is handed to the store.
var ErrNoRawDocument = errors.New("database: document has no raw response")

// IngestDB provides SQLite-based storage for ingested documents and their
// chunks. Content-addresses double as dedup records: a row in the ingests
// table means the address has been fully stored.
//
// Design decision: We use a single database file shared across runs rather
// than one file per run. Dedup must survive process restarts, and a single
// file simplifies backup and inspection.
type IngestDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures IngestDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates an IngestDB at the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*IngestDB, error) {
	dbPath := filepath.Join(dbDir, "onionharvest.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating new
	// files, mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	idb := &IngestDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := idb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return idb, nil
}

// Close closes the database connection.
func (idb *IngestDB) Close() error {
	return idb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (idb *IngestDB) createTables() error {
	schema := `
	-- Ingest records double as dedup markers, keyed by content-address.
	CREATE TABLE IF NOT EXISTS ingests (
		content_address TEXT PRIMARY KEY,
		title TEXT,
		status_code INTEGER,
		transport TEXT NOT NULL,
		chunk_count INTEGER NOT NULL,
		fetched_at DATETIME,
		ingested_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_ingests_ingested_at ON ingests(ingested_at);

	-- Chunks hold the split document text, ordered by chunk_index.
	CREATE TABLE IF NOT EXISTS chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content_address TEXT NOT NULL REFERENCES ingests(content_address),
		chunk_index INTEGER NOT NULL,
		body TEXT NOT NULL,
		UNIQUE(content_address, chunk_index)
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_address ON chunks(content_address);
	`

	_, err := idb.db.ExecContext(context.Background(), schema)
	return err
}

// HasIngested reports whether a content-address has already been stored.
func (idb *IngestDB) HasIngested(ctx context.Context, contentAddress string) (bool, error) {
	query := `SELECT COUNT(*) FROM ingests WHERE content_address = ?`

	var count int
	if err := idb.db.QueryRowContext(ctx, query, contentAddress).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check ingest record: %w", err)
	}

	return count > 0, nil
}

// SaveDocument stores a processed document and its chunks in a single
// transaction and returns the number of chunks written. The ingest row and
// all chunk rows commit together, so a partially stored document is never
// observable. Returns ErrAlreadyIngested if the content-address is already
// present.
func (idb *IngestDB) SaveDocument(ctx context.Context, doc *model.Document) (int, error) {
	if doc.Raw == nil {
		return 0, ErrNoRawDocument
	}

	tx, err := idb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	insertIngest := `
	INSERT INTO ingests (content_address, title, status_code, transport, chunk_count, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(content_address) DO NOTHING
	`

	result, err := tx.ExecContext(ctx, insertIngest,
		doc.Target.ContentAddress,
		doc.Title,
		doc.Raw.StatusCode,
		doc.Raw.Transport.String(),
		len(doc.Chunks),
		doc.Raw.FetchedAt.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert ingest record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read insert result: %w", err)
	}
	if affected == 0 {
		return 0, ErrAlreadyIngested
	}

	insertChunk := `
	INSERT INTO chunks (content_address, chunk_index, body)
	VALUES (?, ?, ?)
	`

	for _, chunk := range doc.Chunks {
		if _, err := tx.ExecContext(ctx, insertChunk, doc.Target.ContentAddress, chunk.Index, chunk.Body); err != nil {
			return 0, fmt.Errorf("failed to insert chunk %d: %w", chunk.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit document: %w", err)
	}

	return len(doc.Chunks), nil
}

// Chunks returns the stored chunks for a content-address in index order.
func (idb *IngestDB) Chunks(ctx context.Context, contentAddress string) ([]model.Chunk, error) {
	query := `
	SELECT chunk_index, body FROM chunks
	WHERE content_address = ?
	ORDER BY chunk_index
	`

	rows, err := idb.db.QueryContext(ctx, query, contentAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []model.Chunk
	for rows.Next() {
		var chunk model.Chunk
		if err := rows.Scan(&chunk.Index, &chunk.Body); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}

	return chunks, rows.Err()
}

// IngestRecord contains metadata about a stored document.
type IngestRecord struct {
	// ContentAddress is the hex content-address the document is keyed by.
	ContentAddress string

	// Title is the extracted page title, empty if none.
	Title string

	// StatusCode is the HTTP status of the stored fetch.
	StatusCode int

	// Transport names the transport the fetch used.
	Transport string

	// ChunkCount is the number of chunks stored for the document.
	ChunkCount int

	// IngestedAt is when the document was stored.
	IngestedAt time.Time
}

// GetIngestRecord retrieves ingest metadata by content-address.
// Returns nil without error when the address has not been ingested.
func (idb *IngestDB) GetIngestRecord(ctx context.Context, contentAddress string) (*IngestRecord, error) {
	query := `
	SELECT content_address, title, status_code, transport, chunk_count, ingested_at
	FROM ingests
	WHERE content_address = ?
	`

	var record IngestRecord
	var ingestedAt string

	err := idb.db.QueryRowContext(ctx, query, contentAddress).Scan(
		&record.ContentAddress,
		&record.Title,
		&record.StatusCode,
		&record.Transport,
		&record.ChunkCount,
		&ingestedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ingest record: %w", err)
	}

	record.IngestedAt = parseTimestamp(ingestedAt)

	return &record, nil
}

// CountIngested returns the total number of stored documents.
func (idb *IngestDB) CountIngested(ctx context.Context) (int, error) {
	var count int
	if err := idb.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ingests`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count ingests: %w", err)
	}
	return count, nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on configuration.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
