package http

import (
	"time"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
	"github.com/0xcro3dile/coopchat-go/internal/domain/usecases"
)

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status  string            `json:"status"`
	Domains []entities.Domain `json:"domains"`
}

type initRequest struct {
	SessionID string `json:"session_id"`
}

type messageRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type askRequest struct {
	Question string `json:"question"`
}

type progressJSON struct {
	Collected int `json:"collected"`
	Total     int `json:"total"`
}

type chatResponse struct {
	SessionID       string         `json:"session_id"`
	Domain          string         `json:"domain"`
	Stage           string         `json:"stage"`
	Reply           string         `json:"reply,omitempty"`
	Facts           entities.Facts `json:"facts"`
	RecordID        string         `json:"record_id,omitempty"`
	LinkedRecordIDs []string       `json:"linked_record_ids,omitempty"`
	Completed       bool           `json:"completed"`
	HasRecord       bool           `json:"has_record"`
	Progress        progressJSON   `json:"progress"`
	Missing         []string       `json:"missing,omitempty"`
	Priority        string         `json:"priority,omitempty"`
}

func newChatResponse(res usecases.Result) chatResponse {
	facts := res.Facts
	if facts == nil {
		facts = entities.Facts{}
	}
	return chatResponse{
		SessionID:       res.SessionID,
		Domain:          string(res.Domain),
		Stage:           string(res.Stage),
		Reply:           res.Reply,
		Facts:           facts,
		RecordID:        res.RecordID,
		LinkedRecordIDs: res.LinkedRecordIDs,
		Completed:       res.Completed,
		HasRecord:       res.HasRecord,
		Progress:        progressJSON{Collected: res.Progress.Collected, Total: res.Progress.Total},
		Missing:         res.Missing,
		Priority:        string(res.Priority),
	}
}

type turnJSON struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type historyResponse struct {
	SessionID string     `json:"session_id"`
	Turns     []turnJSON `json:"turns"`
}

type sourceJSON struct {
	Source    string  `json:"source"`
	Relevance float64 `json:"relevance"`
	Snippet   string  `json:"snippet"`
}

type askResponse struct {
	Answer  string       `json:"answer"`
	Sources []sourceJSON `json:"sources"`
}

type statsResponse struct {
	Domain       string `json:"domain"`
	Backend      string `json:"backend"`
	Chunks       int    `json:"chunks"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
}
