package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
)

type fakeStore struct {
	results    []entities.QueryResult
	err        error
	lastTopK   int
	lastFilter map[string]string
}

func (f *fakeStore) Query(ctx context.Context, text string, topK int, filter map[string]string) ([]entities.QueryResult, error) {
	f.lastTopK = topK
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) > topK {
		return f.results[:topK], nil
	}
	return f.results, nil
}

func (f *fakeStore) AddDocuments(ctx context.Context, chunks []entities.Chunk) error { return nil }
func (f *fakeStore) DeleteSource(ctx context.Context, documentID string) error      { return nil }
func (f *fakeStore) Reset(ctx context.Context) error                                { return nil }
func (f *fakeStore) Count(ctx context.Context) (int, error)                         { return len(f.results), nil }

func hit(content string, distance float64, meta map[string]string) entities.QueryResult {
	return entities.QueryResult{Chunk: entities.Chunk{Content: content, Metadata: meta}, Distance: distance}
}

func TestSplit_PrefersParagraphs(t *testing.T) {
	text := "Primer párrafo sobre tarifas.\n\nSegundo párrafo sobre cortes."
	chunks := Split(text, 40, 0)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Primer párrafo sobre tarifas.", chunks[0])
	assert.Equal(t, "Segundo párrafo sobre cortes.", chunks[1])
}

func TestSplit_SmallTextIsOneChunk(t *testing.T) {
	chunks := Split("  hola mundo  ", 100, 10)
	assert.Equal(t, []string{"hola mundo"}, chunks)
}

func TestSplit_EmptyText(t *testing.T) {
	assert.Nil(t, Split("   \n\n ", 100, 10))
}

func TestSplit_OverlapCarriesWords(t *testing.T) {
	text := strings.Repeat("agua ", 30)
	chunks := Split(text, 25, 10)
	require.Greater(t, len(chunks), 1)
	// the tail of each chunk reappears at the head of the next
	assert.True(t, strings.HasPrefix(chunks[1], "agua"))
}

func TestSplit_HardCutWithoutSeparators(t *testing.T) {
	chunks := Split(strings.Repeat("x", 25), 10, 0)
	assert.Equal(t, []string{"xxxxxxxxxx", "xxxxxxxxxx", "xxxxx"}, chunks)
}

func TestSplit_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.StringMatching(`[a-zá ]{0,40}(\n\n|\n|\. )?[a-z ]{0,200}`).Draw(t, "text")
		size := rapid.IntRange(5, 80).Draw(t, "size")
		overlap := rapid.IntRange(0, size-1).Draw(t, "overlap")

		first := Split(text, size, overlap)
		second := Split(text, size, overlap)
		if strings.Join(first, "|") != strings.Join(second, "|") {
			t.Fatal("split is not deterministic")
		}
		for _, c := range first {
			if n := utf8.RuneCountInString(c); n > size {
				t.Fatalf("chunk of %d runes exceeds size %d", n, size)
			}
			if c == "" {
				t.Fatal("empty chunk")
			}
		}
	})
}

func TestChunker_AssignsStableIDsAndMetadata(t *testing.T) {
	doc := &entities.Document{
		ID:      "doc-1",
		Name:    "tarifas.md",
		Path:    "/kb/tarifas.md",
		Domain:  entities.DomainBilling,
		Content: "Uno.\n\nDos.",
	}
	c := NewChunker(5, 0)
	first := c.Chunk(doc)
	second := c.Chunk(doc)

	require.Len(t, first, 2)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.NotEqual(t, first[0].ID, first[1].ID)
	assert.Equal(t, "1", first[1].Metadata[entities.MetaChunkIndex])
	assert.Equal(t, "tarifas.md", first[0].Metadata[entities.MetaSourceFile])
	assert.Equal(t, "billing", first[0].Metadata[entities.MetaDomain])
}

func TestNewChunker_Defaults(t *testing.T) {
	c := NewChunker(0, -1)
	assert.Equal(t, DefaultChunkSize, c.Size())
	assert.Equal(t, 0, c.Overlap())
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "corto", Snippet("  corto ", 10))
	assert.Equal(t, "uno dos...", Snippet("uno dos tres", 9))
	assert.Equal(t, "abcde...", Snippet("abcdefghij", 5))
}

func TestBuild_FormatsSourcesByRelevance(t *testing.T) {
	store := &fakeStore{results: []entities.QueryResult{
		hit("Segundo", 0.6, map[string]string{entities.MetaSourceFile: "b.txt"}),
		hit("Primero", 0.1, map[string]string{entities.MetaSourceURL: "https://coop.cl/a"}),
		hit("Tercero", 0.9, nil),
	}}
	b := NewContextBuilder(store, ContextOptions{Domain: entities.DomainBilling}, nil)

	got := b.Build(context.Background(), "tarifa", 2000)

	want := contextHeader +
		"\n\n[1] Fuente: https://coop.cl/a\nPrimero" +
		"\n\n[2] Fuente: b.txt\nSegundo" +
		"\n\n[3] Fuente: Desconocido\nTercero"
	assert.Equal(t, want, got)
	assert.Equal(t, DefaultTopK, store.lastTopK)
	assert.Equal(t, "billing", store.lastFilter[entities.MetaDomain])
}

func TestBuild_DropsChunkThatOverflows(t *testing.T) {
	store := &fakeStore{results: []entities.QueryResult{
		hit("corto", 0.1, nil),
		hit(strings.Repeat("largo ", 50), 0.2, nil),
		hit("otro corto", 0.3, nil),
	}}
	b := NewContextBuilder(store, ContextOptions{}, nil)

	got := b.Build(context.Background(), "q", 120)
	assert.Contains(t, got, "corto")
	assert.NotContains(t, got, "largo")
	assert.NotContains(t, got, "otro corto")
	assert.LessOrEqual(t, utf8.RuneCountInString(got), 120)
}

func TestBuild_Sentinels(t *testing.T) {
	store := &fakeStore{results: []entities.QueryResult{hit("contenido", 0.1, nil)}}
	b := NewContextBuilder(store, ContextOptions{}, nil)

	assert.Equal(t, NoContext, b.Build(context.Background(), "q", 0))
	assert.Equal(t, NoContext, b.Build(context.Background(), "q", 20))
	assert.Equal(t, NoContext, NewContextBuilder(&fakeStore{}, ContextOptions{}, nil).Build(context.Background(), "q", 2000))
}

func TestBuild_StoreErrorIsEmptyContext(t *testing.T) {
	b := NewContextBuilder(&fakeStore{err: errors.New("connection refused")}, ContextOptions{}, nil)
	assert.Equal(t, NoContext, b.Build(context.Background(), "q", 2000))
}

func TestBuild_NeverExceedsBudget(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 8).Draw(t, "n")
		var results []entities.QueryResult
		for i := 0; i < n; i++ {
			content := rapid.StringMatching(`[a-zñ ]{0,900}`).Draw(t, "content")
			dist := rapid.Float64Range(0, 2).Draw(t, "distance")
			results = append(results, hit(content, dist, nil))
		}
		budget := rapid.IntRange(-10, 3000).Draw(t, "budget")

		got, used := Render(results, budget, DefaultSnippetLimit)
		if got == NoContext {
			if len(used) != 0 {
				t.Fatal("sentinel returned with used chunks")
			}
			return
		}
		if utf8.RuneCountInString(got) > budget {
			t.Fatalf("context of %d runes exceeds budget %d", utf8.RuneCountInString(got), budget)
		}
		for i := 1; i < len(used); i++ {
			if used[i].Relevance() > used[i-1].Relevance() {
				t.Fatal("chunks not in descending relevance")
			}
		}
	})
}
