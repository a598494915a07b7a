package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
	"github.com/0xcro3dile/coopchat-go/internal/domain/ports"
)

const (
	// NoContext is returned when no chunk fits the budget.
	NoContext = "No se encontró información relevante en la base de conocimientos."

	contextHeader       = "INFORMACIÓN RELEVANTE (fragmentos y fuentes):"
	unknownSource       = "Desconocido"
	DefaultTopK         = 5
	DefaultSnippetLimit = 600
)

// ContextOptions configures a ContextBuilder.
type ContextOptions struct {
	TopK         int
	SnippetLimit int
	Timeout      time.Duration
	// Domain restricts results to chunks ingested for one chatbot.
	Domain entities.Domain
}

// ContextBuilder renders the most relevant knowledge chunks into a single
// bounded string for prompts.
type ContextBuilder struct {
	store  ports.KnowledgeStore
	opts   ContextOptions
	logger *zap.Logger
}

// NewContextBuilder creates a ContextBuilder over a knowledge store.
func NewContextBuilder(store ports.KnowledgeStore, opts ContextOptions, logger *zap.Logger) *ContextBuilder {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.SnippetLimit <= 0 {
		opts.SnippetLimit = DefaultSnippetLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContextBuilder{
		store:  store,
		opts:   opts,
		logger: logger.With(zap.String("component", "context_builder")),
	}
}

// Build returns the formatted context for query, never longer than maxChars
// runes, or NoContext when nothing fits. Store failures yield NoContext.
func (b *ContextBuilder) Build(ctx context.Context, query string, maxChars int) string {
	text, _ := b.BuildWithSources(ctx, query, maxChars)
	return text
}

// BuildWithSources is Build plus the results that made it into the text.
func (b *ContextBuilder) BuildWithSources(ctx context.Context, query string, maxChars int) (string, []entities.QueryResult) {
	if maxChars <= 0 || b.store == nil || strings.TrimSpace(query) == "" {
		return NoContext, nil
	}

	if b.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opts.Timeout)
		defer cancel()
	}

	var filter map[string]string
	if b.opts.Domain != "" {
		filter = map[string]string{entities.MetaDomain: string(b.opts.Domain)}
	}

	results, err := b.store.Query(ctx, query, b.opts.TopK, filter)
	if err != nil {
		b.logger.Warn("knowledge query failed, using empty context", zap.Error(err))
		return NoContext, nil
	}

	return Render(results, maxChars, b.opts.SnippetLimit)
}

// Render formats results in descending relevance. A chunk that would push
// the text past maxChars is dropped with everything after it.
func Render(results []entities.QueryResult, maxChars, snippetLimit int) (string, []entities.QueryResult) {
	if maxChars <= 0 || len(results) == 0 {
		return NoContext, nil
	}
	if snippetLimit <= 0 {
		snippetLimit = DefaultSnippetLimit
	}

	ranked := make([]entities.QueryResult, len(results))
	copy(ranked, results)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Relevance() > ranked[j].Relevance()
	})

	var sb strings.Builder
	sb.WriteString(contextHeader)
	length := utf8.RuneCountInString(contextHeader)

	var used []entities.QueryResult
	for i, r := range ranked {
		source := r.Chunk.SourceLabel()
		if source == "" {
			source = unknownSource
		}
		entry := fmt.Sprintf("\n\n[%d] Fuente: %s\n%s", i+1, source, Snippet(r.Chunk.Content, snippetLimit))
		n := utf8.RuneCountInString(entry)
		if length+n > maxChars {
			break
		}
		sb.WriteString(entry)
		length += n
		used = append(used, r)
	}

	if len(used) == 0 {
		return NoContext, nil
	}
	return sb.String(), used
}

// Snippet trims text to limit runes, cutting at the last whitespace before
// the limit and marking the cut with "...".
func Snippet(text string, limit int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	cut := runes[:limit]
	for i := len(cut) - 1; i > 0; i-- {
		if unicode.IsSpace(cut[i]) {
			cut = cut[:i]
			break
		}
	}
	return strings.TrimRightFunc(string(cut), unicode.IsSpace) + "..."
}
