package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/coopchat-go/internal/adapters/storage/memory"
	"github.com/0xcro3dile/coopchat-go/internal/adapters/vectordb"
	"github.com/0xcro3dile/coopchat-go/internal/domain/dialogue"
	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
	"github.com/0xcro3dile/coopchat-go/internal/domain/extraction"
	"github.com/0xcro3dile/coopchat-go/internal/domain/ports"
	"github.com/0xcro3dile/coopchat-go/internal/domain/retrieval"
	"github.com/0xcro3dile/coopchat-go/internal/domain/usecases"
)

// mockLLM implements ports.LLMService
type mockLLM struct {
	response string
	err      error
}

func (m *mockLLM) Generate(ctx context.Context, prompt string, opts ports.GenerateOptions) (string, error) {
	return m.response, m.err
}

// mockEmbedder maps every text onto the same direction.
type mockEmbedder struct{}

func (mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0.5}, nil
}

func (e mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0.5}
	}
	return out, nil
}

var testNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, llm *mockLLM) *Server {
	t.Helper()
	clock := func() time.Time { return testNow }
	due := testNow.AddDate(0, 0, 10)
	invoices := memory.NewInvoices(entities.Invoice{
		ID: "b1", RUT: "12345678-9", CustomerName: "María González", Period: "2025-02",
		IssueDate: testNow.AddDate(0, 0, -10), Consumption: 20, Amount: 18500,
		DueDate: &due, Status: entities.PaymentPending,
	})

	store := vectordb.NewKnowledgeStore(mockEmbedder{}, vectordb.NewInMemoryStore(), nil)
	builder := retrieval.NewContextBuilder(store, retrieval.ContextOptions{Domain: entities.DomainBilling}, nil)
	composer := dialogue.NewComposer(llm, builder, dialogue.ComposerOptions{}, clock, nil)

	billing := dialogue.NewBillingFlow(
		extraction.NewDomainChain(entities.DomainBilling, nil, nil, 0, nil),
		invoices, composer, clock, nil)
	emergency := dialogue.NewEmergencyFlow(
		extraction.NewDomainChain(entities.DomainEmergency, nil, nil, 0, nil),
		memory.NewTickets(), composer, clock, nil)
	chatbot := usecases.NewChatbotService(memory.NewConversations(),
		[]dialogue.Flow{billing, emergency}, usecases.ChatbotOptions{}, clock, nil)

	ingest := usecases.NewIngestUseCase(store, nil, nil, entities.DomainBilling, nil)
	_, err := ingest.Ingest(context.Background(), &entities.Document{
		ID: "doc-pagos", Name: "pagos.md", Path: "knowledge/billing/pagos.md",
		Content: "Las boletas se pagan en la oficina de la cooperativa o por transferencia.",
	})
	require.NoError(t, err)

	knowledge := map[entities.Domain]KnowledgeBase{
		entities.DomainBilling: {
			Query:  usecases.NewQueryUseCase(store, composer, entities.DomainBilling, 5),
			Ingest: ingest,
		},
	}
	return NewServer(chatbot, knowledge, "memory", ":0", nil)
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), rr.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &mockLLM{})

	rr := do(t, s, http.MethodGet, "/api/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	resp := decode[healthResponse](t, rr)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []entities.Domain{entities.DomainBilling, entities.DomainEmergency}, resp.Domains)
}

func TestChatFlow(t *testing.T) {
	s := newTestServer(t, &mockLLM{})

	rr := do(t, s, http.MethodPost, "/api/billing/chat/init", nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	start := decode[chatResponse](t, rr)
	assert.Equal(t, "collecting", start.Stage)
	assert.Equal(t, dialogue.BillingWelcome, start.Reply)
	require.NotEmpty(t, start.SessionID)

	rr = do(t, s, http.MethodPost, "/api/billing/chat/message", messageRequest{
		SessionID: start.SessionID,
		Message:   "cuánto debo pagar, mi RUT es 12.345.678-9",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res := decode[chatResponse](t, rr)
	assert.Equal(t, "resolved", res.Stage)
	assert.Equal(t, "b1", res.RecordID)
	assert.True(t, res.HasRecord)
	assert.Contains(t, res.Reply, "$18.500")
	assert.Equal(t, "12345678-9", res.Facts[entities.KeyRUT])

	rr = do(t, s, http.MethodGet, "/api/billing/chat/status/"+start.SessionID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	status := decode[chatResponse](t, rr)
	assert.Equal(t, "resolved", status.Stage)
	assert.Empty(t, status.Reply)

	rr = do(t, s, http.MethodGet, "/api/billing/chat/history/"+start.SessionID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	history := decode[historyResponse](t, rr)
	require.Len(t, history.Turns, 3)
	assert.Equal(t, "assistant", history.Turns[0].Role)
	assert.Equal(t, "user", history.Turns[1].Role)
}

func TestChatInit_SpanishDomainAndClientID(t *testing.T) {
	s := newTestServer(t, &mockLLM{})

	rr := do(t, s, http.MethodPost, "/api/emergencia/chat/init", initRequest{SessionID: "abc-123"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	res := decode[chatResponse](t, rr)
	assert.Equal(t, "abc-123", res.SessionID)
	assert.Equal(t, "emergency", res.Domain)

	rr = do(t, s, http.MethodPost, "/api/emergency/chat/init", initRequest{SessionID: "abc-123"})
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestErrors(t *testing.T) {
	s := newTestServer(t, &mockLLM{})
	rr := do(t, s, http.MethodPost, "/api/billing/chat/init", nil)
	billingID := decode[chatResponse](t, rr).SessionID

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown domain", http.MethodPost, "/api/agua/chat/init", nil, http.StatusBadRequest},
		{"unknown session", http.MethodPost, "/api/billing/chat/message", messageRequest{SessionID: "nope", Message: "hola"}, http.StatusNotFound},
		{"wrong domain for session", http.MethodPost, "/api/emergency/chat/message", messageRequest{SessionID: billingID, Message: "hola"}, http.StatusNotFound},
		{"empty message", http.MethodPost, "/api/billing/chat/message", messageRequest{SessionID: billingID}, http.StatusBadRequest},
		{"unknown status", http.MethodGet, "/api/billing/chat/status/nope", nil, http.StatusNotFound},
		{"no emergency knowledge", http.MethodGet, "/api/emergency/rag/stats", nil, http.StatusNotFound},
		{"empty question", http.MethodPost, "/api/billing/ask", askRequest{}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, s, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
			assert.NotEmpty(t, decode[errorResponse](t, rr).Error)
		})
	}
}

func TestChatMessage_InvalidJSON(t *testing.T) {
	s := newTestServer(t, &mockLLM{})
	req := httptest.NewRequest(http.MethodPost, "/api/billing/chat/message", strings.NewReader("{"))
	rr := httptest.NewRecorder()

	s.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAsk(t *testing.T) {
	llm := &mockLLM{response: "Puedes pagar tu boleta en la oficina de la cooperativa o por transferencia."}
	s := newTestServer(t, llm)

	rr := do(t, s, http.MethodPost, "/api/billing/ask", askRequest{Question: "¿Dónde pago?"})

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[askResponse](t, rr)
	assert.Equal(t, llm.response, resp.Answer)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "knowledge/billing/pagos.md", resp.Sources[0].Source)
	assert.InDelta(t, 1.0, resp.Sources[0].Relevance, 1e-6)
}

func TestAsk_ModelDown(t *testing.T) {
	s := newTestServer(t, &mockLLM{err: ports.ErrUpstreamUnavailable})

	rr := do(t, s, http.MethodPost, "/api/billing/ask", askRequest{Question: "¿Dónde pago?"})

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestStats(t *testing.T) {
	s := newTestServer(t, &mockLLM{})

	rr := do(t, s, http.MethodGet, "/api/boletas/rag/stats", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	stats := decode[statsResponse](t, rr)
	assert.Equal(t, "billing", stats.Domain)
	assert.Equal(t, "memory", stats.Backend)
	assert.Equal(t, 1, stats.Chunks)
	assert.Equal(t, retrieval.DefaultChunkSize, stats.ChunkSize)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, &mockLLM{})

	rr := do(t, s, http.MethodOptions, "/api/billing/chat/init", nil)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
