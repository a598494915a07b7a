// Package usecases - chatbot.go runs one conversational turn end to end.
package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/0xcro3dile/coopchat-go/internal/domain/dialogue"
	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
	"github.com/0xcro3dile/coopchat-go/internal/domain/ports"
)

// ErrUnsupportedDomain is returned for domains without a registered flow.
var ErrUnsupportedDomain = errors.New("unsupported chatbot domain")

// Result is what a caller learns from one turn or a status query.
type Result struct {
	SessionID       string
	Domain          entities.Domain
	Stage           entities.Stage
	Facts           entities.Facts
	RecordID        string
	LinkedRecordIDs []string
	Reply           string
	Completed       bool
	HasRecord       bool
	Progress        dialogue.Progress
	Missing         []string
	Priority        entities.Priority
}

// ChatbotOptions configures session handling.
type ChatbotOptions struct {
	// SessionTTL expires sessions idle for longer; zero disables expiry.
	SessionTTL time.Duration
	// HistoryTurns is how many previous turns are handed to the flow.
	HistoryTurns int
}

// ChatbotService orchestrates turns: lock, load, record, step, persist.
type ChatbotService struct {
	flows         map[entities.Domain]dialogue.Flow
	conversations ports.ConversationRepository
	locks         *sessionLocks
	opts          ChatbotOptions
	now           ports.Clock
	newID         func() string
	logger        *zap.Logger
}

// NewChatbotService creates the service over the given flows.
func NewChatbotService(
	conversations ports.ConversationRepository,
	flows []dialogue.Flow,
	opts ChatbotOptions,
	clock ports.Clock,
	logger *zap.Logger,
) *ChatbotService {
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = 10
	}
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	byDomain := make(map[entities.Domain]dialogue.Flow, len(flows))
	for _, f := range flows {
		byDomain[f.Domain()] = f
	}
	return &ChatbotService{
		flows:         byDomain,
		conversations: conversations,
		locks:         newSessionLocks(),
		opts:          opts,
		now:           clock,
		newID:         uuid.NewString,
		logger:        logger.With(zap.String("component", "chatbot")),
	}
}

// Domains lists the registered chatbot domains.
func (s *ChatbotService) Domains() []entities.Domain {
	out := make([]entities.Domain, 0, len(s.flows))
	for _, d := range []entities.Domain{entities.DomainBilling, entities.DomainEmergency} {
		if _, ok := s.flows[d]; ok {
			out = append(out, d)
		}
	}
	return out
}

// StartConversation opens a session and returns the welcome reply. An empty
// sessionID gets a generated one.
func (s *ChatbotService) StartConversation(ctx context.Context, domain entities.Domain, sessionID string) (Result, error) {
	flow, err := s.flow(domain)
	if err != nil {
		return Result{}, err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = s.newID()
	}

	release := s.locks.lock(sessionID)
	defer release()

	now := s.now()
	conv := entities.NewConversation(sessionID, domain, now)
	if err := s.conversations.Create(ctx, conv); err != nil {
		return Result{}, fmt.Errorf("creating session %s: %w", sessionID, err)
	}

	welcome := flow.Welcome()
	conv.Stage = entities.StageCollecting
	if err := s.conversations.Save(ctx, conv); err != nil {
		return Result{}, fmt.Errorf("saving session: %w", err)
	}
	if err := s.appendTurn(ctx, conv, entities.RoleAssistant, welcome, nil); err != nil {
		return Result{}, err
	}

	s.logger.Info("conversation started", zap.String("session_id", sessionID), zap.String("domain", string(domain)))

	res := s.snapshot(conv, flow)
	res.Reply = welcome
	return res, nil
}

// ProcessMessage runs one user turn.
func (s *ChatbotService) ProcessMessage(ctx context.Context, domain entities.Domain, sessionID, message string) (Result, error) {
	flow, err := s.flow(domain)
	if err != nil {
		return Result{}, err
	}

	release := s.locks.lock(sessionID)
	defer release()

	conv, err := s.load(ctx, domain, sessionID)
	if err != nil {
		return Result{}, err
	}

	history, err := s.conversations.RecentTurns(ctx, sessionID, s.opts.HistoryTurns)
	if err != nil {
		return Result{}, fmt.Errorf("loading history: %w", err)
	}
	if err := s.appendTurn(ctx, conv, entities.RoleUser, message, nil); err != nil {
		return Result{}, err
	}

	if conv.Stage.IsTerminal() {
		if err := s.appendTurn(ctx, conv, entities.RoleAssistant, dialogue.FinishedReply, nil); err != nil {
			return Result{}, err
		}
		res := s.snapshot(conv, flow)
		res.Reply = dialogue.FinishedReply
		res.Completed = true
		return res, nil
	}

	before := conv.Stage
	out, err := flow.Step(ctx, conv, message, history)
	if err != nil {
		s.logger.Error("turn failed", zap.String("session_id", sessionID), zap.Error(err))
		return Result{}, fmt.Errorf("processing message: %w", err)
	}

	conv.UpdatedAt = s.now()
	if err := s.conversations.Save(ctx, conv); err != nil {
		return Result{}, fmt.Errorf("saving session: %w", err)
	}
	meta := map[string]any{
		"stage":    string(conv.Stage),
		"progress": fmt.Sprintf("%d/%d", out.Progress.Collected, out.Progress.Total),
	}
	if err := s.appendTurn(ctx, conv, entities.RoleAssistant, out.Reply, meta); err != nil {
		return Result{}, err
	}

	if before != conv.Stage {
		s.logger.Info("stage changed",
			zap.String("session_id", sessionID),
			zap.String("from", string(before)),
			zap.String("to", string(conv.Stage)))
	}

	res := s.snapshot(conv, flow)
	res.Reply = out.Reply
	res.Completed = out.Completed || conv.Stage.IsTerminal()
	res.HasRecord = out.HasRecord
	res.Progress = out.Progress
	res.Missing = out.Missing
	res.Priority = out.Priority
	return res, nil
}

// Status returns the current state of a session.
func (s *ChatbotService) Status(ctx context.Context, domain entities.Domain, sessionID string) (Result, error) {
	flow, err := s.flow(domain)
	if err != nil {
		return Result{}, err
	}
	conv, err := s.load(ctx, domain, sessionID)
	if err != nil {
		return Result{}, err
	}
	return s.snapshot(conv, flow), nil
}

// History returns every turn of a session in order.
func (s *ChatbotService) History(ctx context.Context, domain entities.Domain, sessionID string) ([]entities.Turn, error) {
	if _, err := s.load(ctx, domain, sessionID); err != nil {
		return nil, err
	}
	turns, err := s.conversations.RecentTurns(ctx, sessionID, 0)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	return turns, nil
}

// Abandon closes a session administratively.
func (s *ChatbotService) Abandon(ctx context.Context, sessionID string) error {
	release := s.locks.lock(sessionID)
	defer release()

	conv, err := s.conversations.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if conv.Stage.IsTerminal() {
		return nil
	}
	conv.Finish(entities.StageAbandoned, s.now())
	if err := s.conversations.Save(ctx, conv); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	s.logger.Info("conversation abandoned", zap.String("session_id", sessionID))
	return nil
}

// AbandonIdle abandons every open session idle for longer than idleFor and
// returns how many were closed.
func (s *ChatbotService) AbandonIdle(ctx context.Context, idleFor time.Duration) (int, error) {
	idle, err := s.conversations.ListIdle(ctx, s.now().Add(-idleFor))
	if err != nil {
		return 0, fmt.Errorf("listing idle sessions: %w", err)
	}
	n := 0
	for _, c := range idle {
		if err := s.Abandon(ctx, c.SessionID); err != nil {
			s.logger.Warn("abandoning idle session", zap.String("session_id", c.SessionID), zap.Error(err))
			continue
		}
		n++
	}
	return n, nil
}

func (s *ChatbotService) flow(domain entities.Domain) (dialogue.Flow, error) {
	f, ok := s.flows[domain]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDomain, domain)
	}
	return f, nil
}

// load fetches a live session of the domain. Expired sessions are reported
// as not found and left untouched.
func (s *ChatbotService) load(ctx context.Context, domain entities.Domain, sessionID string) (*entities.Conversation, error) {
	conv, err := s.conversations.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if conv.Domain != domain {
		return nil, fmt.Errorf("session %s belongs to %s: %w", sessionID, conv.Domain, ports.ErrSessionNotFound)
	}
	if s.opts.SessionTTL > 0 && !conv.Stage.IsTerminal() && s.now().Sub(conv.UpdatedAt) > s.opts.SessionTTL {
		return nil, fmt.Errorf("session %s expired: %w", sessionID, ports.ErrSessionNotFound)
	}
	return conv, nil
}

func (s *ChatbotService) appendTurn(ctx context.Context, conv *entities.Conversation, role entities.Role, content string, meta map[string]any) error {
	turn := &entities.Turn{
		SessionID: conv.SessionID,
		Role:      role,
		Content:   content,
		Metadata:  meta,
		CreatedAt: s.now(),
	}
	if err := s.conversations.AppendTurn(ctx, turn); err != nil {
		return fmt.Errorf("recording %s turn: %w", role, err)
	}
	return nil
}

func (s *ChatbotService) snapshot(conv *entities.Conversation, flow dialogue.Flow) Result {
	required := flow.Required()
	missing := dialogue.Missing(required, conv.Facts)
	res := Result{
		SessionID:       conv.SessionID,
		Domain:          conv.Domain,
		Stage:           conv.Stage,
		Facts:           conv.Facts.Clone(),
		RecordID:        conv.RecordID,
		LinkedRecordIDs: append([]string(nil), conv.LinkedRecordIDs...),
		Completed:       conv.Stage.IsTerminal(),
		HasRecord:       conv.RecordID != "",
		Progress:        dialogue.Progress{Collected: len(required) - len(missing), Total: len(required)},
		Missing:         missing,
	}
	return res
}
