// Package usecases contains application business rules.
// Clean Architecture: Usecases orchestrate entities and depend on port interfaces.
// They contain NO framework code - just the rules of the chatbots.
package usecases

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
	"github.com/0xcro3dile/coopchat-go/internal/domain/ports"
	"github.com/0xcro3dile/coopchat-go/internal/domain/retrieval"
)

// IngestUseCase loads knowledge documents of one chatbot into the store.
// A re-ingested document replaces all of its previous chunks.
type IngestUseCase struct {
	store   ports.KnowledgeStore
	loader  ports.DocumentLoader
	chunker *retrieval.Chunker
	domain  entities.Domain
	logger  *zap.Logger
}

// NewIngestUseCase creates an IngestUseCase with injected dependencies.
func NewIngestUseCase(
	store ports.KnowledgeStore,
	loader ports.DocumentLoader,
	chunker *retrieval.Chunker,
	domain entities.Domain,
	logger *zap.Logger,
) *IngestUseCase {
	if chunker == nil {
		chunker = retrieval.NewChunker(retrieval.DefaultChunkSize, retrieval.DefaultChunkOverlap)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestUseCase{
		store:   store,
		loader:  loader,
		chunker: chunker,
		domain:  domain,
		logger:  logger.With(zap.String("component", "ingest"), zap.String("domain", string(domain))),
	}
}

// IngestReport summarizes a directory ingestion.
type IngestReport struct {
	Files  int
	Chunks int
	Failed []string
}

// Ingest chunks a document and replaces its chunks in the store.
func (uc *IngestUseCase) Ingest(ctx context.Context, doc *entities.Document) (int, error) {
	if doc.Domain == "" {
		doc.Domain = uc.domain
	}
	chunks := uc.chunker.Chunk(doc)

	if err := uc.store.DeleteSource(ctx, doc.ID); err != nil {
		return 0, fmt.Errorf("removing previous chunks of %s: %w", doc.Name, err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	if err := uc.store.AddDocuments(ctx, chunks); err != nil {
		return 0, fmt.Errorf("storing chunks of %s: %w", doc.Name, err)
	}
	return len(chunks), nil
}

// IngestFile loads and ingests one file.
func (uc *IngestUseCase) IngestFile(ctx context.Context, path string) (int, error) {
	doc, err := uc.loader.Load(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("loading %s: %w", path, err)
	}
	n, err := uc.Ingest(ctx, doc)
	if err != nil {
		return 0, err
	}
	uc.logger.Info("document ingested", zap.String("path", path), zap.Int("chunks", n))
	return n, nil
}

// IngestDirectory ingests every supported file under dir. A failing file is
// reported and skipped.
func (uc *IngestUseCase) IngestDirectory(ctx context.Context, dir string) (IngestReport, error) {
	var report IngestReport
	if _, err := os.Stat(dir); err != nil {
		return report, fmt.Errorf("reading knowledge directory: %w", err)
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !uc.Supports(path) {
			return nil
		}
		n, err := uc.IngestFile(ctx, path)
		if err != nil {
			uc.logger.Warn("skipping document", zap.String("path", path), zap.Error(err))
			report.Failed = append(report.Failed, path)
			return nil
		}
		report.Files++
		report.Chunks += n
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("walking %s: %w", dir, err)
	}
	return report, nil
}

// Supports reports whether the loader handles the file extension.
func (uc *IngestUseCase) Supports(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range uc.loader.SupportedExtensions() {
		if e == ext {
			return true
		}
	}
	return false
}

// Delete removes a document from the store.
func (uc *IngestUseCase) Delete(ctx context.Context, documentID string) error {
	return uc.store.DeleteSource(ctx, documentID)
}

// Reset empties the knowledge store.
func (uc *IngestUseCase) Reset(ctx context.Context) error {
	if err := uc.store.Reset(ctx); err != nil {
		return fmt.Errorf("resetting knowledge store: %w", err)
	}
	return nil
}

// Watch re-ingests files under dir as they change until ctx is done.
func (uc *IngestUseCase) Watch(ctx context.Context, watcher ports.FileWatcher, dir string) error {
	defer watcher.Stop()
	events, err := watcher.Watch(ctx, dir)
	if err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			uc.handleEvent(ctx, ev)
		}
	}
}

func (uc *IngestUseCase) handleEvent(ctx context.Context, ev ports.FileEvent) {
	if !uc.Supports(ev.Path) {
		return
	}
	switch ev.Operation {
	case ports.FileDeleted:
		if err := uc.Delete(ctx, retrieval.DocumentID(ev.Path)); err != nil {
			uc.logger.Warn("removing deleted document", zap.String("path", ev.Path), zap.Error(err))
			return
		}
		uc.logger.Info("document removed", zap.String("path", ev.Path))
	default:
		if _, err := uc.IngestFile(ctx, ev.Path); err != nil {
			uc.logger.Warn("re-ingesting document", zap.String("path", ev.Path), zap.Error(err))
		}
	}
}

// KnowledgeStats describes the knowledge base of one chatbot.
type KnowledgeStats struct {
	Domain       entities.Domain
	Chunks       int
	ChunkSize    int
	ChunkOverlap int
}

// Stats returns chunk counts and chunking parameters.
func (uc *IngestUseCase) Stats(ctx context.Context) (KnowledgeStats, error) {
	n, err := uc.store.Count(ctx)
	if err != nil {
		return KnowledgeStats{}, fmt.Errorf("counting chunks: %w", err)
	}
	return KnowledgeStats{
		Domain:       uc.domain,
		Chunks:       n,
		ChunkSize:    uc.chunker.Size(),
		ChunkOverlap: uc.chunker.Overlap(),
	}, nil
}
