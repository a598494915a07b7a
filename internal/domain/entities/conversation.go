package entities

import (
	"fmt"
	"strings"
	"time"
)

// Domain selects the chatbot variant.
type Domain string

const (
	DomainBilling   Domain = "billing"
	DomainEmergency Domain = "emergency"
)

// ParseDomain accepts the English names plus the original Spanish module names.
func ParseDomain(s string) (Domain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "billing", "boletas", "boleta":
		return DomainBilling, nil
	case "emergency", "emergencia", "emergencias":
		return DomainEmergency, nil
	}
	return "", fmt.Errorf("unknown domain %q", s)
}

// Stage is the conversation position in the intake workflow.
type Stage string

const (
	StageStarted    Stage = "started"
	StageCollecting Stage = "collecting"
	StageResolved   Stage = "resolved"
	StageComparing  Stage = "comparing"
	StageClosed     Stage = "closed"
	StageAbandoned  Stage = "abandoned"
)

// IsTerminal reports whether no further processing happens in this stage.
func (s Stage) IsTerminal() bool {
	return s == StageClosed || s == StageAbandoned
}

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Conversation is one chat session. It is never physically deleted by the
// pipeline; terminal stages close it logically.
type Conversation struct {
	SessionID       string
	Domain          Domain
	Stage           Stage
	Facts           Facts
	RecordID        string
	LinkedRecordIDs []string
	// Awaiting is the fact the last assistant prompt asked for.
	Awaiting  string
	Metadata  map[string]any
	StartedAt time.Time
	UpdatedAt time.Time
	EndedAt   *time.Time
}

// NewConversation creates a conversation in the started stage.
func NewConversation(sessionID string, domain Domain, now time.Time) *Conversation {
	return &Conversation{
		SessionID: sessionID,
		Domain:    domain,
		Stage:     StageStarted,
		Facts:     Facts{},
		Metadata:  map[string]any{},
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Finish moves the conversation to a terminal stage.
func (c *Conversation) Finish(stage Stage, now time.Time) {
	c.Stage = stage
	c.Awaiting = ""
	c.UpdatedAt = now
	c.EndedAt = &now
}

// Turn is one message in a conversation. Turns are append-only.
type Turn struct {
	ID        int64
	SessionID string
	Role      Role
	Content   string
	Metadata  map[string]any
	CreatedAt time.Time
}
