package vectordb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
)

// SQLiteStore implements ports.VectorStore with SQLite persistence.
// Search is brute-force cosine over the (optionally filtered) rows.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sqlx.DB
	path   string
	logger *zap.Logger
}

// NewSQLiteStore opens or creates the database file at dbPath.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = filepath.Join("data", "knowledge.db")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sqlx.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		path:   dbPath,
		logger: logger.With(zap.String("component", "sqlite_vectors"), zap.String("path", dbPath)),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return store, nil
}

// initSchema creates the necessary tables.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		content TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		embedding BLOB NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_document_id ON chunks(document_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

type chunkRow struct {
	ID         string `db:"id"`
	DocumentID string `db:"document_id"`
	Content    string `db:"content"`
	Index      int    `db:"chunk_index"`
	Embedding  []byte `db:"embedding"`
	Metadata   string `db:"metadata"`
}

// Store saves chunks with their embeddings.
func (s *SQLiteStore) Store(ctx context.Context, chunks []entities.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, chunk := range chunks {
		embeddingJSON, err := json.Marshal(chunk.Embedding)
		if err != nil {
			return fmt.Errorf("encoding embedding: %w", err)
		}
		metadataJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata: %w", err)
		}

		_, err = tx.NamedExecContext(ctx, `
			INSERT OR REPLACE INTO chunks (id, document_id, content, chunk_index, embedding, metadata)
			VALUES (:id, :document_id, :content, :chunk_index, :embedding, :metadata)
		`, chunkRow{
			ID:         chunk.ID,
			DocumentID: chunk.DocumentID,
			Content:    chunk.Content,
			Index:      chunk.Index,
			Embedding:  embeddingJSON,
			Metadata:   string(metadataJSON),
		})
		if err != nil {
			return fmt.Errorf("inserting chunk: %w", err)
		}
	}

	return tx.Commit()
}

// Search finds the chunks closest to a query embedding.
func (s *SQLiteStore) Search(ctx context.Context, embedding []float32, topK int, filter map[string]string) ([]entities.QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []chunkRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, document_id, content, chunk_index, embedding, metadata
		FROM chunks
	`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}

	results := make([]entities.QueryResult, 0, len(rows))
	for _, row := range rows {
		chunk := entities.Chunk{
			ID:         row.ID,
			DocumentID: row.DocumentID,
			Content:    row.Content,
			Index:      row.Index,
		}
		if err := json.Unmarshal(row.Embedding, &chunk.Embedding); err != nil {
			s.logger.Warn("skipping corrupted embedding", zap.String("chunk_id", row.ID))
			continue
		}
		if err := json.Unmarshal([]byte(row.Metadata), &chunk.Metadata); err != nil {
			s.logger.Warn("skipping corrupted metadata", zap.String("chunk_id", row.ID))
			continue
		}
		if !matchesFilter(chunk.Metadata, filter) {
			continue
		}
		results = append(results, entities.QueryResult{
			Chunk:    chunk,
			Distance: cosineDistance(embedding, chunk.Embedding),
		})
	}

	return rank(results, topK), nil
}

// Delete removes all chunks for a document.
func (s *SQLiteStore) Delete(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID)
	return err
}

// Clear removes all data from the store.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM chunks")
	return err
}

// Count returns the number of stored chunks.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM chunks")
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
