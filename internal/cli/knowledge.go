package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/0xcro3dile/coopchat-go/internal/adapters/filewatcher"
	"github.com/0xcro3dile/coopchat-go/internal/domain/retrieval"
)

var (
	ingestReset bool
	ingestWatch bool
	ingestDir   string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <billing|emergency>",
	Short: "Load knowledge documents into a chatbot's knowledge base",
	Long: `Ingest every .txt, .md and .pdf file of the domain's knowledge directory.
A re-ingested file replaces its previous chunks.

Use --reset to empty the knowledge base first and --watch to keep
re-ingesting files as they change.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain, err := parseDomainArg(args[0])
		if err != nil {
			return err
		}
		k, err := App.KnowledgeFor(domain)
		if err != nil {
			return err
		}
		dir := k.Dir
		if ingestDir != "" {
			dir = ingestDir
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := App.StartPDFService(ctx); err != nil {
			App.Logger.Warn("pdf service unavailable, PDFs will be skipped", zap.Error(err))
		}

		if ingestReset {
			if err := k.Ingest.Reset(ctx); err != nil {
				return fmt.Errorf("resetting knowledge: %w", err)
			}
			fmt.Fprintf(out, "Cleared %s knowledge base\n", domain)
		}

		report, err := k.Ingest.IngestDirectory(ctx, dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Ingested %d files (%d chunks) from %s\n", report.Files, report.Chunks, dir)
		for _, path := range report.Failed {
			fmt.Fprintf(out, "  skipped: %s\n", path)
		}

		if !ingestWatch {
			return nil
		}
		watcher, err := filewatcher.NewFSNotifyWatcher(nil, App.Logger)
		if err != nil {
			return fmt.Errorf("creating watcher: %w", err)
		}
		fmt.Fprintf(out, "Watching %s (ctrl+c to stop)\n", dir)
		return k.Ingest.Watch(ctx, watcher, dir)
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <billing|emergency> <question>",
	Short: "Answer a question from a chatbot's knowledge base",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain, err := parseDomainArg(args[0])
		if err != nil {
			return err
		}
		k, err := App.KnowledgeFor(domain)
		if err != nil {
			return err
		}

		answer, err := k.Query.Ask(cmd.Context(), strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(out, answer.Text)
		if len(answer.Sources) > 0 {
			fmt.Fprintln(out, "\nFuentes:")
			for i, src := range answer.Sources {
				fmt.Fprintf(out, "  [%d] %s (%.2f)\n", i+1, src.Chunk.SourceLabel(), src.Relevance())
			}
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <billing|emergency>",
	Short: "Show knowledge base statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain, err := parseDomainArg(args[0])
		if err != nil {
			return err
		}
		k, err := App.KnowledgeFor(domain)
		if err != nil {
			return err
		}
		stats, err := k.Ingest.Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "domain:   %s\nbackend:  %s\nchunks:   %d\nchunking: %d/%d\n",
			stats.Domain, App.Config.Knowledge.Backend, stats.Chunks, stats.ChunkSize, stats.ChunkOverlap)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <billing|emergency> <query>",
	Short: "List the knowledge chunks closest to a query",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain, err := parseDomainArg(args[0])
		if err != nil {
			return err
		}
		k, err := App.KnowledgeFor(domain)
		if err != nil {
			return err
		}
		results, err := k.Query.Search(cmd.Context(), strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Fprintln(out, retrieval.NoContext)
			return nil
		}
		for i, r := range results {
			fmt.Fprintf(out, "[%d] %s (%.2f)\n    %s\n", i+1, r.Chunk.SourceLabel(), r.Relevance(),
				retrieval.Snippet(strings.ReplaceAll(r.Chunk.Content, "\n", " "), 160))
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestReset, "reset", false, "clear the knowledge base before ingesting")
	ingestCmd.Flags().BoolVar(&ingestWatch, "watch", false, "keep watching the directory for changes")
	ingestCmd.Flags().StringVar(&ingestDir, "dir", "", "directory to ingest (overrides the configured one)")
	rootCmd.AddCommand(ingestCmd, askCmd, statsCmd, searchCmd)
}
