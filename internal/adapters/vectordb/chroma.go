package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
	"github.com/0xcro3dile/coopchat-go/internal/domain/ports"
)

// metaDocumentID is the Chroma metadata key used to delete a source's chunks.
const metaDocumentID = "document_id"

var (
	errChromaNotFound = errors.New("chroma resource not found")
	errChromaConflict = errors.New("chroma resource conflict")
)

// ChromaConfig addresses one Chroma collection.
type ChromaConfig struct {
	BaseURL    string
	Collection string
	APIKey     string
	Timeout    time.Duration
}

// ChromaStore implements ports.VectorStore over the Chroma REST API.
// Embeddings are computed by the caller; the collection uses cosine space.
type ChromaStore struct {
	httpClient *http.Client
	baseURL    string
	collection string
	apiKey     string
	logger     *zap.Logger

	mu           sync.RWMutex
	collectionID string
}

// NewChromaStore creates a client. The collection is resolved lazily.
func NewChromaStore(cfg ChromaConfig, logger *zap.Logger) *ChromaStore {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8000"
	}
	if cfg.Collection == "" {
		cfg.Collection = "coopchat"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromaStore{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/") + "/api/v1",
		collection: cfg.Collection,
		apiKey:     cfg.APIKey,
		logger:     logger.With(zap.String("component", "chroma"), zap.String("collection", cfg.Collection)),
	}
}

// Heartbeat checks that the server answers.
func (c *ChromaStore) Heartbeat(ctx context.Context) error {
	return c.doRequest(ctx, http.MethodGet, c.baseURL+"/heartbeat", nil, nil)
}

// Store adds chunks with their embeddings.
func (c *ChromaStore) Store(ctx context.Context, chunks []entities.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	id, err := c.ensureCollection(ctx)
	if err != nil {
		return err
	}

	ids := make([]string, len(chunks))
	documents := make([]string, len(chunks))
	embeddings := make([][]float32, len(chunks))
	metadatas := make([]map[string]string, len(chunks))
	for i, chunk := range chunks {
		ids[i] = chunk.ID
		documents[i] = chunk.Content
		embeddings[i] = chunk.Embedding
		meta := make(map[string]string, len(chunk.Metadata)+1)
		for k, v := range chunk.Metadata {
			meta[k] = v
		}
		meta[metaDocumentID] = chunk.DocumentID
		metadatas[i] = meta
	}
	payload := map[string]interface{}{
		"ids":        ids,
		"documents":  documents,
		"embeddings": embeddings,
		"metadatas":  metadatas,
	}
	return c.doRequest(ctx, http.MethodPost, c.collectionURL(id, "upsert"), payload, nil)
}

// Search queries the collection nearest to embedding.
func (c *ChromaStore) Search(ctx context.Context, embedding []float32, topK int, filter map[string]string) ([]entities.QueryResult, error) {
	id, err := c.ensureCollection(ctx)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 5
	}
	body := map[string]interface{}{
		"query_embeddings": [][]float32{embedding},
		"n_results":        topK,
		"include":          []string{"documents", "metadatas", "distances"},
	}
	if where := whereClause(filter); where != nil {
		body["where"] = where
	}

	var resp struct {
		IDs       [][]string            `json:"ids"`
		Distances [][]float64           `json:"distances"`
		Metadatas [][]map[string]string `json:"metadatas"`
		Documents [][]string            `json:"documents"`
	}
	if err := c.doRequest(ctx, http.MethodPost, c.collectionURL(id, "query"), body, &resp); err != nil {
		return nil, err
	}
	if len(resp.IDs) == 0 {
		return nil, nil
	}

	results := make([]entities.QueryResult, 0, len(resp.IDs[0]))
	for i, chunkID := range resp.IDs[0] {
		chunk := entities.Chunk{ID: chunkID, Metadata: map[string]string{}}
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			for k, v := range resp.Metadatas[0][i] {
				chunk.Metadata[k] = v
			}
		}
		chunk.DocumentID = chunk.Metadata[metaDocumentID]
		delete(chunk.Metadata, metaDocumentID)
		if len(resp.Documents) > 0 && i < len(resp.Documents[0]) {
			chunk.Content = resp.Documents[0][i]
		}
		var distance float64
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			distance = resp.Distances[0][i]
		}
		results = append(results, entities.QueryResult{Chunk: chunk, Distance: distance})
	}
	return rank(results, topK), nil
}

// Delete removes all chunks of one document.
func (c *ChromaStore) Delete(ctx context.Context, documentID string) error {
	id, err := c.ensureCollection(ctx)
	if err != nil {
		return err
	}
	body := map[string]interface{}{"where": map[string]string{metaDocumentID: documentID}}
	return c.doRequest(ctx, http.MethodPost, c.collectionURL(id, "delete"), body, nil)
}

// Clear drops and recreates the collection.
func (c *ChromaStore) Clear(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/collections/%s", c.baseURL, url.PathEscape(c.collection))
	if err := c.doRequest(ctx, http.MethodDelete, endpoint, nil, nil); err != nil && !errors.Is(err, errChromaNotFound) {
		return err
	}
	c.mu.Lock()
	c.collectionID = ""
	c.mu.Unlock()
	_, err := c.ensureCollection(ctx)
	return err
}

// Count returns the number of stored chunks.
func (c *ChromaStore) Count(ctx context.Context) (int, error) {
	id, err := c.ensureCollection(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := c.doRequest(ctx, http.MethodGet, c.collectionURL(id, "count"), nil, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func (c *ChromaStore) collectionURL(id, action string) string {
	return fmt.Sprintf("%s/collections/%s/%s", c.baseURL, url.PathEscape(id), action)
}

func (c *ChromaStore) ensureCollection(ctx context.Context) (string, error) {
	c.mu.RLock()
	id := c.collectionID
	c.mu.RUnlock()
	if id != "" {
		return id, nil
	}

	payload := map[string]interface{}{
		"name":          c.collection,
		"get_or_create": true,
		"metadata":      map[string]string{"hnsw:space": "cosine"},
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.doRequest(ctx, http.MethodPost, c.baseURL+"/collections", payload, &resp); err != nil {
		return "", fmt.Errorf("resolving collection: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("resolving collection: empty id")
	}

	c.mu.Lock()
	c.collectionID = resp.ID
	c.mu.Unlock()
	c.logger.Debug("collection ready", zap.String("collection_id", resp.ID))
	return resp.ID, nil
}

// whereClause renders a metadata filter; several keys combine with $and.
func whereClause(filter map[string]string) interface{} {
	switch len(filter) {
	case 0:
		return nil
	case 1:
		return filter
	}
	clauses := make([]map[string]string, 0, len(filter))
	for k, v := range filter {
		clauses = append(clauses, map[string]string{k: v})
	}
	return map[string]interface{}{"$and": clauses}
}

func (c *ChromaStore) doRequest(ctx context.Context, method, endpoint string, body interface{}, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chroma %s: %w: %w", method, ports.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errChromaNotFound
	case resp.StatusCode == http.StatusConflict:
		return errChromaConflict
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("chroma %s %s returned %d: %w", method, endpoint, resp.StatusCode, ports.ErrUpstreamUnavailable)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chroma %s %s failed: %s", method, endpoint, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
