package vectordb

import (
	"context"
	"testing"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
)

func TestInMemoryStore_SearchOrderAndTopK(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	store.Store(ctx, []entities.Chunk{
		{ID: "far", DocumentID: "d", Embedding: []float32{0, 1}},
		{ID: "near", DocumentID: "d", Embedding: []float32{1, 0.1}},
		{ID: "exact", DocumentID: "d", Embedding: []float32{1, 0}},
	})

	results, _ := store.Search(ctx, []float32{1, 0}, 2, nil)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Chunk.ID != "exact" || results[1].Chunk.ID != "near" {
		t.Errorf("unexpected order: %s, %s", results[0].Chunk.ID, results[1].Chunk.ID)
	}
	if results[0].Distance > results[1].Distance {
		t.Error("distances should ascend")
	}
}

func TestInMemoryStore_RestoreDoesNotDuplicate(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	chunk := entities.Chunk{ID: "c1", DocumentID: "d", Embedding: []float32{1}}
	store.Store(ctx, []entities.Chunk{chunk})
	store.Store(ctx, []entities.Chunk{chunk})

	if n, _ := store.Count(ctx); n != 1 {
		t.Errorf("expected 1 chunk, got %d", n)
	}
	store.Delete(ctx, "d")
	if n, _ := store.Count(ctx); n != 0 {
		t.Errorf("expected 0 chunks after delete, got %d", n)
	}
}

func TestInMemoryStore_Filter(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	store.Store(ctx, []entities.Chunk{
		{ID: "a", Embedding: []float32{1}, Metadata: map[string]string{"domain": "billing"}},
		{ID: "b", Embedding: []float32{1}},
	})

	results, _ := store.Search(ctx, []float32{1}, 5, map[string]string{"domain": "billing"})
	if len(results) != 1 || results[0].Chunk.ID != "a" {
		t.Errorf("filter not applied: %+v", results)
	}
}
