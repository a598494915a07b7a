// Package ports defines interfaces for external dependencies.
// Clean Architecture: These are the boundaries - usecases depend on these abstractions,
// not concrete implementations. Adapters implement these interfaces.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
)

var (
	// ErrSessionNotFound is returned for unknown or expired session ids.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExists is returned when starting a session with a taken id.
	ErrSessionExists = errors.New("session already exists")
	// ErrUpstreamUnavailable wraps generative or knowledge service outages and rate limits.
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
	// ErrNotFound is returned by repositories for missing records.
	ErrNotFound = errors.New("not found")
)

// GenerateOptions bounds one generation call.
type GenerateOptions struct {
	Temperature     float64
	MaxOutputTokens int
	// JSON asks the model to reply with a single JSON object.
	JSON bool
}

// LLMService generates text responses from a language model.
type LLMService interface {
	// Generate produces a completion for the prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// EmbeddingService generates vector embeddings for text.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore persists and queries chunk embeddings.
type VectorStore interface {
	// Store saves chunks with their embeddings.
	Store(ctx context.Context, chunks []entities.Chunk) error

	// Search returns the topK chunks closest to the embedding whose
	// metadata matches every filter entry.
	Search(ctx context.Context, embedding []float32, topK int, filter map[string]string) ([]entities.QueryResult, error)

	// Delete removes all chunks for a document.
	Delete(ctx context.Context, documentID string) error

	// Clear removes all data from the store.
	Clear(ctx context.Context) error

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)
}

// KnowledgeStore is the text-in, text-out view of the knowledge base.
// Implementations either embed locally or delegate search to a server.
type KnowledgeStore interface {
	// Query returns up to topK chunks ordered by ascending distance.
	Query(ctx context.Context, text string, topK int, filter map[string]string) ([]entities.QueryResult, error)

	// AddDocuments stores chunks; ids come from the chunker.
	AddDocuments(ctx context.Context, chunks []entities.Chunk) error

	// DeleteSource removes every chunk of one source document.
	DeleteSource(ctx context.Context, documentID string) error

	// Reset removes every chunk.
	Reset(ctx context.Context) error

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)
}

// ConversationRepository persists sessions and their turns.
type ConversationRepository interface {
	// Create inserts a new conversation; ErrSessionExists if the id is taken.
	Create(ctx context.Context, conv *entities.Conversation) error

	// Get loads a conversation; ErrSessionNotFound if absent.
	Get(ctx context.Context, sessionID string) (*entities.Conversation, error)

	// Save overwrites the conversation state.
	Save(ctx context.Context, conv *entities.Conversation) error

	// AppendTurn adds a turn at the end of the conversation.
	AppendTurn(ctx context.Context, turn *entities.Turn) error

	// RecentTurns returns the last n turns in insertion order. n <= 0 returns all.
	RecentTurns(ctx context.Context, sessionID string, n int) ([]entities.Turn, error)

	// ListIdle returns non-terminal conversations last updated before the cutoff.
	ListIdle(ctx context.Context, before time.Time) ([]entities.Conversation, error)
}

// InvoiceRepository is the narrow read interface over billing records.
type InvoiceRepository interface {
	// FindByKey returns the invoices of a customer, most recent first.
	FindByKey(ctx context.Context, rut string) (entities.LookupResult, error)

	// FindAllByKey returns at most limit invoices, most recent first. limit <= 0 returns all.
	FindAllByKey(ctx context.Context, rut string, limit int) ([]entities.Invoice, error)

	// FindByName matches customer names ignoring case and accents.
	FindByName(ctx context.Context, name string) ([]entities.Invoice, error)

	// Get loads one invoice by id; ErrNotFound if absent.
	Get(ctx context.Context, id string) (*entities.Invoice, error)

	// Save inserts or replaces an invoice.
	Save(ctx context.Context, inv *entities.Invoice) error
}

// TicketRepository persists emergency tickets.
type TicketRepository interface {
	Create(ctx context.Context, t *entities.Ticket) error
	Update(ctx context.Context, t *entities.Ticket) error
	// Get loads one ticket by id; ErrNotFound if absent.
	Get(ctx context.Context, id string) (*entities.Ticket, error)
}

// DocumentLoader reads and parses documents from various formats.
type DocumentLoader interface {
	// Load reads a document from the given path.
	Load(ctx context.Context, path string) (*entities.Document, error)

	// SupportedExtensions returns file extensions this loader handles.
	SupportedExtensions() []string
}

// DocumentParser extracts text from binary document formats (PDF).
type DocumentParser interface {
	// Parse extracts text content from document bytes.
	Parse(ctx context.Context, data []byte, filename string) (string, error)

	// SupportedFormats returns formats this parser handles (e.g., "pdf").
	SupportedFormats() []string
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)

// Clock returns the current time. Injected so date arithmetic is testable.
type Clock func() time.Time
