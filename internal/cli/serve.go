package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
	httpserver "github.com/0xcro3dile/coopchat-go/internal/infrastructure/http"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the chatbot API for both domains under /api/{domain}/...

With knowledge.watch enabled, changes in the knowledge directories are
re-ingested while the server runs.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := App.StartPDFService(ctx); err != nil {
			App.Logger.Warn("pdf service unavailable, PDFs will be skipped", zap.Error(err))
		}
		if App.Config.Knowledge.Watch {
			go func() {
				if err := App.WatchKnowledge(ctx); err != nil {
					App.Logger.Error("knowledge watcher stopped", zap.Error(err))
				}
			}()
		}

		addr := App.Config.HTTP.Addr
		if serveAddr != "" {
			addr = serveAddr
		}
		return newHTTPServer(addr).Start(ctx)
	},
}

func newHTTPServer(addr string) *httpserver.Server {
	knowledge := make(map[entities.Domain]httpserver.KnowledgeBase, len(App.Knowledge))
	for d, k := range App.Knowledge {
		knowledge[d] = httpserver.KnowledgeBase{Query: k.Query, Ingest: k.Ingest}
	}
	return httpserver.NewServer(App.Chatbot, knowledge, App.Config.Knowledge.Backend, addr, App.Logger)
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides http.addr)")
	rootCmd.AddCommand(serveCmd)
}
