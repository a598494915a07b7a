// Package http provides the HTTP server infrastructure.
// Clean Architecture: Framework/driver layer - outermost circle.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
	"github.com/0xcro3dile/coopchat-go/internal/domain/ports"
	"github.com/0xcro3dile/coopchat-go/internal/domain/usecases"
)

// KnowledgeBase is the knowledge API of one chatbot.
type KnowledgeBase struct {
	Query  *usecases.QueryUseCase
	Ingest *usecases.IngestUseCase
}

// Server is the HTTP server for the chatbot API.
type Server struct {
	chatbot   *usecases.ChatbotService
	knowledge map[entities.Domain]KnowledgeBase
	backend   string
	addr      string
	router    chi.Router
	logger    *zap.Logger
}

// NewServer creates a new HTTP server. backend names the knowledge store
// reported by the stats endpoint.
func NewServer(
	chatbot *usecases.ChatbotService,
	knowledge map[entities.Domain]KnowledgeBase,
	backend string,
	addr string,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		chatbot:   chatbot,
		knowledge: knowledge,
		backend:   backend,
		addr:      addr,
		router:    chi.NewRouter(),
		logger:    logger.With(zap.String("component", "http")),
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(corsMiddleware)

	s.router.Get("/api/health", s.handleHealth)

	s.router.Route("/api/{domain}", func(r chi.Router) {
		r.Post("/chat/init", s.handleChatInit)
		r.Post("/chat/message", s.handleChatMessage)
		r.Get("/chat/status/{sessionID}", s.handleChatStatus)
		r.Get("/chat/history/{sessionID}", s.handleChatHistory)
		r.Post("/ask", s.handleAsk)
		r.Get("/rag/stats", s.handleStats)
	})
}

// Start runs the HTTP server until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	s.logger.Info("coopchat server starting", zap.String("addr", s.addr))

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Domains: s.chatbot.Domains()})
}

// domain resolves the {domain} path parameter, writing a 400 when unknown.
func (s *Server) domain(w http.ResponseWriter, r *http.Request) (entities.Domain, bool) {
	d, err := entities.ParseDomain(chi.URLParam(r, "domain"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return "", false
	}
	return d, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		s.logger.Warn("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ports.ErrSessionNotFound), errors.Is(err, ports.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ports.ErrSessionExists):
		return http.StatusConflict
	case errors.Is(err, usecases.ErrUnsupportedDomain):
		return http.StatusBadRequest
	case errors.Is(err, ports.ErrUpstreamUnavailable), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("dur", time.Since(start)))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
