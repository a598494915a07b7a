// Package app wires configuration, adapters and use cases into a runnable
// coopchat instance.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/0xcro3dile/coopchat-go/internal/adapters/embedding"
	"github.com/0xcro3dile/coopchat-go/internal/adapters/filewatcher"
	"github.com/0xcro3dile/coopchat-go/internal/adapters/llm"
	"github.com/0xcro3dile/coopchat-go/internal/adapters/loader"
	"github.com/0xcro3dile/coopchat-go/internal/adapters/parser"
	"github.com/0xcro3dile/coopchat-go/internal/adapters/storage/memory"
	"github.com/0xcro3dile/coopchat-go/internal/adapters/storage/sqlite"
	"github.com/0xcro3dile/coopchat-go/internal/adapters/vectordb"
	"github.com/0xcro3dile/coopchat-go/internal/config"
	"github.com/0xcro3dile/coopchat-go/internal/domain/dialogue"
	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
	"github.com/0xcro3dile/coopchat-go/internal/domain/extraction"
	"github.com/0xcro3dile/coopchat-go/internal/domain/ports"
	"github.com/0xcro3dile/coopchat-go/internal/domain/retrieval"
	"github.com/0xcro3dile/coopchat-go/internal/domain/usecases"
)

// Knowledge groups the knowledge base use cases of one chatbot.
type Knowledge struct {
	Domain entities.Domain
	Dir    string
	Query  *usecases.QueryUseCase
	Ingest *usecases.IngestUseCase
}

// App holds every wired service.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	LLM           ports.LLMService
	Embedder      ports.EmbeddingService
	Conversations ports.ConversationRepository
	Invoices      ports.InvoiceRepository
	Tickets       ports.TicketRepository

	Chatbot   *usecases.ChatbotService
	Knowledge map[entities.Domain]*Knowledge

	pdf        *parser.PythonPDFParser
	newWatcher func() (ports.FileWatcher, error)
	closers    []func() error
}

// Options overrides pieces of the wiring, mainly for tests.
type Options struct {
	LLM      ports.LLMService
	Embedder ports.EmbeddingService
	Clock    ports.Clock
}

// New builds an App from cfg.
func New(cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	a := &App{
		Config:    cfg,
		Logger:    logger,
		LLM:       opts.LLM,
		Embedder:  opts.Embedder,
		Knowledge: make(map[entities.Domain]*Knowledge),
		newWatcher: func() (ports.FileWatcher, error) {
			w, err := filewatcher.NewFSNotifyWatcher(nil, logger)
			if err != nil {
				return nil, err
			}
			return w, nil
		},
	}
	if a.LLM == nil {
		a.LLM = newLLM(cfg.LLM, logger)
	}
	if a.Embedder == nil {
		a.Embedder = newEmbedder(cfg.Embedding, logger)
	}

	if err := a.openStorage(); err != nil {
		a.Close()
		return nil, err
	}

	a.pdf = parser.NewPythonPDFParser(cfg.PDF.ServiceURL, logger)
	docs := loader.NewMultiLoader(a.pdf, logger)
	chunker := retrieval.NewChunker(cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap)

	var flows []dialogue.Flow
	for _, domain := range []entities.Domain{entities.DomainBilling, entities.DomainEmergency} {
		store, err := a.openKnowledge(domain)
		if err != nil {
			a.Close()
			return nil, err
		}

		dlog := logger.With(zap.String("domain", string(domain)))
		builder := retrieval.NewContextBuilder(store, retrieval.ContextOptions{
			TopK:         cfg.Knowledge.TopK,
			SnippetLimit: retrieval.DefaultSnippetLimit,
			Timeout:      cfg.Knowledge.Timeout,
			Domain:       domain,
		}, dlog)
		composer := dialogue.NewComposer(a.LLM, builder, dialogue.ComposerOptions{
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, opts.Clock, dlog)
		chain := extraction.NewDomainChain(domain, a.LLM, builder, cfg.LLM.Timeout, dlog)

		switch domain {
		case entities.DomainBilling:
			flows = append(flows, dialogue.NewBillingFlow(chain, a.Invoices, composer, opts.Clock, dlog))
		case entities.DomainEmergency:
			flows = append(flows, dialogue.NewEmergencyFlow(chain, a.Tickets, composer, opts.Clock, dlog))
		}

		a.Knowledge[domain] = &Knowledge{
			Domain: domain,
			Dir:    cfg.Knowledge.DomainDir(string(domain)),
			Query:  usecases.NewQueryUseCase(store, composer, domain, cfg.Knowledge.TopK),
			Ingest: usecases.NewIngestUseCase(store, docs, chunker, domain, logger),
		}
	}

	a.Chatbot = usecases.NewChatbotService(a.Conversations, flows, usecases.ChatbotOptions{
		SessionTTL:   cfg.Chat.SessionTTL,
		HistoryTurns: cfg.Chat.HistoryTurns,
	}, opts.Clock, logger)

	return a, nil
}

func newLLM(cfg config.LLMConfig, logger *zap.Logger) ports.LLMService {
	if cfg.Provider == "openai" {
		return llm.NewOpenAILLMAdapter(llm.OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
		}, logger)
	}
	return llm.NewOllamaLLMAdapter(cfg.BaseURL, cfg.Model, cfg.Timeout, logger)
}

func newEmbedder(cfg config.EmbeddingConfig, logger *zap.Logger) ports.EmbeddingService {
	if cfg.Provider == "openai" {
		return embedding.NewOpenAIAdapter(embedding.OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		}, logger)
	}
	return embedding.NewOllamaAdapter(cfg.BaseURL, cfg.Model, logger)
}

func (a *App) openStorage() error {
	if a.Config.Storage.Driver == "memory" {
		a.Conversations = memory.NewConversations()
		a.Invoices = memory.NewInvoices()
		a.Tickets = memory.NewTickets()
		return nil
	}

	db, err := sqlite.Open(a.Config.Storage.Path, a.Logger)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	a.Conversations = db.Conversations()
	a.Invoices = db.Invoices()
	a.Tickets = db.Tickets()
	return nil
}

// openKnowledge returns the knowledge store of one domain. Each domain gets
// its own database file or Chroma collection.
func (a *App) openKnowledge(domain entities.Domain) (ports.KnowledgeStore, error) {
	k := a.Config.Knowledge
	var vectors ports.VectorStore
	switch k.Backend {
	case "memory":
		vectors = vectordb.NewInMemoryStore()
	case "chroma":
		vectors = vectordb.NewChromaStore(vectordb.ChromaConfig{
			BaseURL:    k.Chroma.URL(),
			Collection: k.Chroma.Collection + "_" + string(domain),
			APIKey:     k.Chroma.APIKey,
			Timeout:    k.Timeout,
		}, a.Logger)
	default:
		store, err := vectordb.NewSQLiteStore(filepath.Join(k.DataPath, "knowledge_"+string(domain)+".db"), a.Logger)
		if err != nil {
			return nil, fmt.Errorf("opening %s knowledge: %w", domain, err)
		}
		a.closers = append(a.closers, store.Close)
		vectors = store
	}
	return vectordb.NewKnowledgeStore(a.Embedder, vectors, a.Logger), nil
}

// KnowledgeFor returns the knowledge use cases of domain.
func (a *App) KnowledgeFor(domain entities.Domain) (*Knowledge, error) {
	k, ok := a.Knowledge[domain]
	if !ok {
		return nil, fmt.Errorf("%w: %q", usecases.ErrUnsupportedDomain, domain)
	}
	return k, nil
}

// StartPDFService launches the PDF extraction helper when configured to and
// it is not already running.
func (a *App) StartPDFService(ctx context.Context) error {
	if !a.Config.PDF.Autostart || a.pdf.IsServiceHealthy(ctx) {
		return nil
	}
	stop, err := a.pdf.StartService(ctx, a.Config.PDF.ScriptDir)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error {
		stop()
		return nil
	})
	return nil
}

// WatchKnowledge re-ingests each domain's knowledge directory as files
// change, until ctx is done. If any watcher fails, the others are stopped
// before it returns.
func (a *App) WatchKnowledge(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	for _, k := range a.Knowledge {
		k := k
		if k.Dir == "" {
			continue
		}
		watcher, err := a.newWatcher()
		if err != nil {
			cancel()
			return errors.Join(fmt.Errorf("creating watcher: %w", err), g.Wait())
		}
		g.Go(func() error {
			return k.Ingest.Watch(ctx, watcher, k.Dir)
		})
	}
	return g.Wait()
}

// Close releases databases and helper processes in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
