package vectordb

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
	"github.com/0xcro3dile/coopchat-go/internal/domain/ports"
)

// KnowledgeStore implements ports.KnowledgeStore by embedding text locally
// and delegating storage and search to a VectorStore.
type KnowledgeStore struct {
	embedder ports.EmbeddingService
	vectors  ports.VectorStore
	logger   *zap.Logger
}

// NewKnowledgeStore composes an embedder with a vector store.
func NewKnowledgeStore(embedder ports.EmbeddingService, vectors ports.VectorStore, logger *zap.Logger) *KnowledgeStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KnowledgeStore{
		embedder: embedder,
		vectors:  vectors,
		logger:   logger.With(zap.String("component", "knowledge_store")),
	}
}

// Query embeds text and returns the closest chunks.
func (k *KnowledgeStore) Query(ctx context.Context, text string, topK int, filter map[string]string) ([]entities.QueryResult, error) {
	embedding, err := k.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return k.vectors.Search(ctx, embedding, topK, filter)
}

// AddDocuments embeds chunks in one batch and stores them.
func (k *KnowledgeStore) AddDocuments(ctx context.Context, chunks []entities.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	embeddings, err := k.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("generating embeddings: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("expected %d embeddings, got %d", len(chunks), len(embeddings))
	}

	embedded := make([]entities.Chunk, len(chunks))
	for i, c := range chunks {
		c.Embedding = embeddings[i]
		embedded[i] = c
	}
	if err := k.vectors.Store(ctx, embedded); err != nil {
		return fmt.Errorf("storing chunks: %w", err)
	}
	k.logger.Debug("stored chunks", zap.Int("count", len(chunks)), zap.String("document_id", chunks[0].DocumentID))
	return nil
}

// DeleteSource removes every chunk of one document.
func (k *KnowledgeStore) DeleteSource(ctx context.Context, documentID string) error {
	return k.vectors.Delete(ctx, documentID)
}

// Reset removes every chunk.
func (k *KnowledgeStore) Reset(ctx context.Context) error {
	return k.vectors.Clear(ctx)
}

// Count returns the number of stored chunks.
func (k *KnowledgeStore) Count(ctx context.Context) (int, error) {
	return k.vectors.Count(ctx)
}
