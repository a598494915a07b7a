package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/0xcro3dile/coopchat-go/internal/domain/retrieval"
)

const sourceSnippetLimit = 200

// handleChatInit opens a session. The body and its session_id are optional.
func (s *Server) handleChatInit(w http.ResponseWriter, r *http.Request) {
	domain, ok := s.domain(w, r)
	if !ok {
		return
	}
	var req initRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
			return
		}
	}

	res, err := s.chatbot.StartConversation(r.Context(), domain, strings.TrimSpace(req.SessionID))
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, newChatResponse(res))
}

func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	domain, ok := s.domain(w, r)
	if !ok {
		return
	}
	var req messageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}
	if req.SessionID == "" || strings.TrimSpace(req.Message) == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("session_id and message are required"))
		return
	}

	res, err := s.chatbot.ProcessMessage(r.Context(), domain, req.SessionID, req.Message)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, newChatResponse(res))
}

func (s *Server) handleChatStatus(w http.ResponseWriter, r *http.Request) {
	domain, ok := s.domain(w, r)
	if !ok {
		return
	}
	res, err := s.chatbot.Status(r.Context(), domain, chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, newChatResponse(res))
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	domain, ok := s.domain(w, r)
	if !ok {
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	turns, err := s.chatbot.History(r.Context(), domain, sessionID)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	resp := historyResponse{SessionID: sessionID, Turns: make([]turnJSON, 0, len(turns))}
	for _, t := range turns {
		resp.Turns = append(resp.Turns, turnJSON{Role: string(t.Role), Content: t.Content, CreatedAt: t.CreatedAt})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAsk answers from the knowledge base without a conversation.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	domain, ok := s.domain(w, r)
	if !ok {
		return
	}
	kb, ok := s.knowledge[domain]
	if !ok || kb.Query == nil {
		s.writeError(w, http.StatusNotFound, errors.New("no knowledge base for "+string(domain)))
		return
	}
	var req askRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("question is required"))
		return
	}

	answer, err := kb.Query.Ask(r.Context(), req.Question)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	resp := askResponse{Answer: answer.Text, Sources: make([]sourceJSON, 0, len(answer.Sources))}
	for _, src := range answer.Sources {
		resp.Sources = append(resp.Sources, sourceJSON{
			Source:    src.Chunk.SourceLabel(),
			Relevance: src.Relevance(),
			Snippet:   retrieval.Snippet(src.Chunk.Content, sourceSnippetLimit),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	domain, ok := s.domain(w, r)
	if !ok {
		return
	}
	kb, ok := s.knowledge[domain]
	if !ok || kb.Ingest == nil {
		s.writeError(w, http.StatusNotFound, errors.New("no knowledge base for "+string(domain)))
		return
	}

	stats, err := kb.Ingest.Stats(r.Context())
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Domain:       string(stats.Domain),
		Backend:      s.backend,
		Chunks:       stats.Chunks,
		ChunkSize:    stats.ChunkSize,
		ChunkOverlap: stats.ChunkOverlap,
	})
}
