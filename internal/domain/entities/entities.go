// Package entities contains core business entities.
// These are the enterprise business rules - pure domain objects with no external dependencies.
package entities

import "time"

// Metadata keys attached to every knowledge chunk.
const (
	MetaSourceFile = "source_file"
	MetaSourcePath = "source_path"
	MetaSourceURL  = "source_url"
	MetaChunkIndex = "chunk_index"
	MetaDomain     = "domain"
)

// Document represents a knowledge source (PDF, TXT, MD) before chunking.
type Document struct {
	ID        string
	Name      string
	Path      string
	URL       string
	Domain    Domain
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Source returns the identifier under which the document's chunks are grouped.
// Re-ingesting the same source replaces all of its chunks.
func (d *Document) Source() string {
	if d.URL != "" {
		return d.URL
	}
	return d.Path
}

// Chunk is an immutable slice of a knowledge source.
type Chunk struct {
	ID         string
	DocumentID string
	Content    string
	Index      int
	Metadata   map[string]string
	Embedding  []float32 // populated by adapter
}

// SourceLabel returns the best available attribution for the chunk:
// URL, then file path, then file name.
func (c Chunk) SourceLabel() string {
	for _, key := range []string{MetaSourceURL, MetaSourcePath, MetaSourceFile} {
		if v := c.Metadata[key]; v != "" {
			return v
		}
	}
	return ""
}

// QueryResult is a knowledge search hit.
// Distance is cosine-like in [0,2]; lower is closer.
type QueryResult struct {
	Chunk    Chunk
	Distance float64
}

// Relevance converts distance into a similarity score.
func (r QueryResult) Relevance() float64 {
	return 1 - r.Distance
}

// Answer is a knowledge-only reply with the chunks used to ground it.
type Answer struct {
	Text    string
	Sources []QueryResult
}
