package vectordb

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
	"github.com/0xcro3dile/coopchat-go/internal/domain/ports"
)

type fakeChroma struct {
	mu              sync.Mutex
	collectionCalls int
	collectionBody  map[string]interface{}
	lastUpsert      map[string]interface{}
	lastQuery       map[string]interface{}
	lastDelete      map[string]interface{}
	deletedName     string
	failQuery       bool
}

func (f *fakeChroma) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	decode := func() map[string]interface{} {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		return body
	}

	switch {
	case r.URL.Path == "/api/v1/heartbeat":
		w.Write([]byte(`{"nanosecond heartbeat": 1}`))
	case r.URL.Path == "/api/v1/collections" && r.Method == http.MethodPost:
		f.collectionCalls++
		f.collectionBody = decode()
		w.Write([]byte(`{"id": "col-1", "name": "coopchat_emergency"}`))
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/api/v1/collections/"):
		f.deletedName = strings.TrimPrefix(r.URL.Path, "/api/v1/collections/")
		w.Write([]byte(`null`))
	case r.URL.Path == "/api/v1/collections/col-1/upsert":
		f.lastUpsert = decode()
		w.Write([]byte(`true`))
	case r.URL.Path == "/api/v1/collections/col-1/delete":
		f.lastDelete = decode()
		w.Write([]byte(`[]`))
	case r.URL.Path == "/api/v1/collections/col-1/count":
		w.Write([]byte(`7`))
	case r.URL.Path == "/api/v1/collections/col-1/query":
		if f.failQuery {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		f.lastQuery = decode()
		w.Write([]byte(`{
			"ids": [["b", "a"]],
			"distances": [[0.4, 0.1]],
			"documents": [["segundo", "primero"]],
			"metadatas": [[
				{"document_id": "doc-2", "source_file": "b.md"},
				{"document_id": "doc-1", "source_file": "a.md"}
			]]
		}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestChroma(t *testing.T) (*ChromaStore, *fakeChroma) {
	t.Helper()
	fake := &fakeChroma{}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	return NewChromaStore(ChromaConfig{BaseURL: server.URL, Collection: "coopchat_emergency"}, nil), fake
}

func TestChromaStore_StoreSetsDocumentID(t *testing.T) {
	store, fake := newTestChroma(t)

	err := store.Store(context.Background(), []entities.Chunk{
		{ID: "c1", DocumentID: "doc-1", Content: "fuga", Embedding: []float32{1, 0},
			Metadata: map[string]string{entities.MetaSourceFile: "fugas.md"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "coopchat_emergency", fake.collectionBody["name"])
	assert.Equal(t, true, fake.collectionBody["get_or_create"])
	metas := fake.lastUpsert["metadatas"].([]interface{})
	meta := metas[0].(map[string]interface{})
	assert.Equal(t, "doc-1", meta["document_id"])
	assert.Equal(t, "fugas.md", meta["source_file"])
}

func TestChromaStore_SearchParsesAndOrders(t *testing.T) {
	store, fake := newTestChroma(t)

	results, err := store.Search(context.Background(), []float32{1, 0}, 2, map[string]string{"domain": "emergency"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "a", results[0].Chunk.ID)
	assert.Equal(t, "doc-1", results[0].Chunk.DocumentID)
	assert.Equal(t, "primero", results[0].Chunk.Content)
	assert.Equal(t, "a.md", results[0].Chunk.SourceLabel())
	assert.NotContains(t, results[0].Chunk.Metadata, "document_id")
	assert.InDelta(t, 0.1, results[0].Distance, 1e-9)

	assert.Equal(t, map[string]interface{}{"domain": "emergency"}, fake.lastQuery["where"])
	assert.Equal(t, float64(2), fake.lastQuery["n_results"])
}

func TestChromaStore_CollectionResolvedOnce(t *testing.T) {
	store, fake := newTestChroma(t)
	ctx := context.Background()

	store.Count(ctx)
	store.Count(ctx)
	assert.Equal(t, 1, fake.collectionCalls)
}

func TestChromaStore_DeleteAndCount(t *testing.T) {
	store, fake := newTestChroma(t)
	ctx := context.Background()

	require.NoError(t, store.Delete(ctx, "doc-9"))
	assert.Equal(t, map[string]interface{}{"document_id": "doc-9"}, fake.lastDelete["where"])

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestChromaStore_ClearRecreates(t *testing.T) {
	store, fake := newTestChroma(t)
	ctx := context.Background()

	store.Count(ctx)
	require.NoError(t, store.Clear(ctx))
	assert.Equal(t, "coopchat_emergency", fake.deletedName)
	assert.Equal(t, 2, fake.collectionCalls)
}

func TestChromaStore_OutageIsUpstreamUnavailable(t *testing.T) {
	store, fake := newTestChroma(t)
	fake.failQuery = true

	_, err := store.Search(context.Background(), []float32{1}, 3, nil)
	assert.True(t, errors.Is(err, ports.ErrUpstreamUnavailable))
}

func TestWhereClause(t *testing.T) {
	assert.Nil(t, whereClause(nil))
	assert.Equal(t, map[string]string{"a": "1"}, whereClause(map[string]string{"a": "1"}))

	multi := whereClause(map[string]string{"a": "1", "b": "2"}).(map[string]interface{})
	assert.Len(t, multi["$and"], 2)
}
