package usecases

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/0xcro3dile/coopchat-go/internal/domain/dialogue"
	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
	"github.com/0xcro3dile/coopchat-go/internal/domain/ports"
	"github.com/0xcro3dile/coopchat-go/internal/domain/retrieval"
)

// mockLLM implements ports.LLMService for testing
type mockLLM struct {
	response   string
	err        error
	generateFn func(prompt string) (string, error)
	prompts    []string
}

func (m *mockLLM) Generate(ctx context.Context, prompt string, opts ports.GenerateOptions) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.generateFn != nil {
		return m.generateFn(prompt)
	}
	if m.err != nil {
		return "", m.err
	}
	if m.response != "" {
		return m.response, nil
	}
	return "Respuesta generada por el modelo para la consulta.", nil
}

func newQuery(store *mockKnowledgeStore, llm ports.LLMService) *QueryUseCase {
	builder := retrieval.NewContextBuilder(store, retrieval.ContextOptions{Domain: entities.DomainBilling}, nil)
	composer := dialogue.NewComposer(llm, builder, dialogue.ComposerOptions{}, nil, nil)
	return NewQueryUseCase(store, composer, entities.DomainBilling, 3)
}

func TestQueryUseCase_ReturnsAnswer(t *testing.T) {
	store := &mockKnowledgeStore{
		chunks: []entities.Chunk{
			{ID: "c1", Content: "La oficina atiende de 08:00 a 17:00.", DocumentID: "doc1",
				Metadata: map[string]string{entities.MetaSourceFile: "horarios.txt"}},
		},
	}
	llm := &mockLLM{response: "La oficina atiende de lunes a viernes entre 08:00 y 17:00."}
	uc := newQuery(store, llm)

	answer, err := uc.Ask(context.Background(), "¿a qué hora atienden?")
	if err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	if answer.Text != llm.response {
		t.Errorf("unexpected answer: %s", answer.Text)
	}
	if !strings.Contains(llm.prompts[0], "Fuente: horarios.txt") {
		t.Error("prompt should carry the retrieved source")
	}
}

func TestQueryUseCase_IncludesSources(t *testing.T) {
	store := &mockKnowledgeStore{
		chunks: []entities.Chunk{
			{ID: "c1", Content: "fuente 1", DocumentID: "doc1"},
			{ID: "c2", Content: "fuente 2", DocumentID: "doc2"},
		},
	}
	uc := newQuery(store, &mockLLM{})

	answer, err := uc.Ask(context.Background(), "buscar información")
	if err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	if len(answer.Sources) != 2 {
		t.Errorf("expected 2 sources, got %d", len(answer.Sources))
	}
}

func TestQueryUseCase_EmptyStore(t *testing.T) {
	llm := &mockLLM{response: "No tengo información sobre eso en este momento, lo siento."}
	uc := newQuery(&mockKnowledgeStore{}, llm)

	answer, err := uc.Ask(context.Background(), "hola")
	if err != nil {
		t.Fatalf("should not fail on empty store: %v", err)
	}
	if len(answer.Sources) != 0 {
		t.Error("should have no sources")
	}
	if !strings.Contains(llm.prompts[0], retrieval.NoContext) {
		t.Error("prompt should carry the empty-context sentinel")
	}
}

func TestQueryUseCase_ModelOutage(t *testing.T) {
	llm := &mockLLM{err: errors.New("connection refused")}
	uc := newQuery(&mockKnowledgeStore{}, llm)

	if _, err := uc.Ask(context.Background(), "hola"); err == nil {
		t.Error("model failure should propagate")
	}
}

func TestQueryUseCase_EmptyQuestion(t *testing.T) {
	uc := newQuery(&mockKnowledgeStore{}, &mockLLM{})
	if _, err := uc.Ask(context.Background(), "  "); err == nil {
		t.Error("empty question should error")
	}
}

func TestQueryUseCase_Search(t *testing.T) {
	store := &mockKnowledgeStore{
		chunks: []entities.Chunk{{ID: "c1", Content: "test"}},
	}
	uc := newQuery(store, &mockLLM{})

	results, err := uc.Search(context.Background(), "test query")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) == 0 {
		t.Error("expected search results")
	}
}
