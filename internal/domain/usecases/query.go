// Package usecases - query.go answers knowledge-only questions outside a session.
package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/0xcro3dile/coopchat-go/internal/domain/dialogue"
	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
	"github.com/0xcro3dile/coopchat-go/internal/domain/ports"
)

// QueryUseCase handles search and response generation over one knowledge base.
type QueryUseCase struct {
	store    ports.KnowledgeStore
	composer *dialogue.Composer
	domain   entities.Domain
	topK     int
}

// NewQueryUseCase creates a QueryUseCase with injected dependencies.
func NewQueryUseCase(
	store ports.KnowledgeStore,
	composer *dialogue.Composer,
	domain entities.Domain,
	topK int,
) *QueryUseCase {
	if topK <= 0 {
		topK = 5
	}
	return &QueryUseCase{
		store:    store,
		composer: composer,
		domain:   domain,
		topK:     topK,
	}
}

// Ask answers a question from the knowledge base alone.
func (uc *QueryUseCase) Ask(ctx context.Context, question string) (entities.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return entities.Answer{}, fmt.Errorf("empty question")
	}
	answer, err := uc.composer.Answer(ctx, dialogue.AnswerRequest{
		Domain:   uc.domain,
		Question: question,
	})
	if err != nil {
		return entities.Answer{}, fmt.Errorf("answering question: %w", err)
	}
	return answer, nil
}

// Search only retrieves relevant chunks without generation.
func (uc *QueryUseCase) Search(ctx context.Context, query string) ([]entities.QueryResult, error) {
	filter := map[string]string{entities.MetaDomain: string(uc.domain)}
	results, err := uc.store.Query(ctx, query, uc.topK, filter)
	if err != nil {
		return nil, fmt.Errorf("searching knowledge: %w", err)
	}
	return results, nil
}
