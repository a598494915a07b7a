package vectordb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
	"github.com/0xcro3dile/coopchat-go/internal/domain/ports"
)

// keywordEmbedder maps a text to a two-dimensional vector by keyword.
type keywordEmbedder struct {
	err     error
	batches int
}

func (e *keywordEmbedder) vector(text string) []float32 {
	switch text {
	case "fuga", "¿qué hago con una fuga?":
		return []float32{1, 0}
	default:
		return []float32{0, 1}
	}
}

func (e *keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.vector(text), nil
}

func (e *keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.batches++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func TestKnowledgeStore_AddAndQuery(t *testing.T) {
	embedder := &keywordEmbedder{}
	store := NewKnowledgeStore(embedder, NewInMemoryStore(), nil)
	ctx := context.Background()

	require.NoError(t, store.AddDocuments(ctx, []entities.Chunk{
		{ID: "1", DocumentID: "d", Content: "fuga"},
		{ID: "2", DocumentID: "d", Content: "horario"},
	}))
	assert.Equal(t, 1, embedder.batches)

	results, err := store.Query(ctx, "¿qué hago con una fuga?", 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "1", results[0].Chunk.ID)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, store.DeleteSource(ctx, "d"))
	n, _ = store.Count(ctx)
	assert.Zero(t, n)
}

func TestKnowledgeStore_EmbedFailurePropagates(t *testing.T) {
	embedder := &keywordEmbedder{err: ports.ErrUpstreamUnavailable}
	store := NewKnowledgeStore(embedder, NewInMemoryStore(), nil)

	_, err := store.Query(context.Background(), "fuga", 3, nil)
	assert.True(t, errors.Is(err, ports.ErrUpstreamUnavailable))

	err = store.AddDocuments(context.Background(), []entities.Chunk{{ID: "1", Content: "x"}})
	assert.Error(t, err)
}

func TestKnowledgeStore_AddEmptyIsNoop(t *testing.T) {
	embedder := &keywordEmbedder{}
	store := NewKnowledgeStore(embedder, NewInMemoryStore(), nil)
	require.NoError(t, store.AddDocuments(context.Background(), nil))
	assert.Zero(t, embedder.batches)
}
