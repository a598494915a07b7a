package dialogue

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
	"github.com/0xcro3dile/coopchat-go/internal/domain/ports"
)

// EmergencyRequired is the fact order of an emergency report.
var EmergencyRequired = []string{
	entities.KeyEmergencyType,
	entities.KeySector,
	entities.KeyReporterName,
	entities.KeyAddress,
	entities.KeyPhone,
	entities.KeyDescription,
}

// AwaitingContact marks the pending contact question.
const AwaitingContact = "quiere_contacto"

// MetaWantsContact is the conversation metadata key of the contact answer.
const MetaWantsContact = "wants_contact"

var affirmatives = map[string]bool{"sí": true, "si": true, "yes": true, "ok": true, "claro": true, "bueno": true, "dale": true}

// EmergencyFlow intakes emergency reports and files a ticket.
type EmergencyFlow struct {
	extractor Extractor
	tickets   ports.TicketRepository
	composer  *Composer
	now       ports.Clock
	newID     func() string
	logger    *zap.Logger
}

// NewEmergencyFlow creates the emergency state machine.
func NewEmergencyFlow(extractor Extractor, tickets ports.TicketRepository, composer *Composer, clock ports.Clock, logger *zap.Logger) *EmergencyFlow {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmergencyFlow{
		extractor: extractor,
		tickets:   tickets,
		composer:  composer,
		now:       clock,
		newID:     uuid.NewString,
		logger:    logger.With(zap.String("component", "emergency_flow")),
	}
}

// Domain implements Flow.
func (f *EmergencyFlow) Domain() entities.Domain { return entities.DomainEmergency }

// Welcome implements Flow.
func (f *EmergencyFlow) Welcome() string { return EmergencyWelcome }

// Required implements Flow.
func (f *EmergencyFlow) Required() []string { return EmergencyRequired }

// Step implements Flow.
func (f *EmergencyFlow) Step(ctx context.Context, conv *entities.Conversation, message string, history []entities.Turn) (Outcome, error) {
	if conv.Stage == entities.StageResolved || conv.Stage == entities.StageComparing {
		return f.answerContact(ctx, conv, message)
	}
	conv.Stage = entities.StageCollecting

	changed := extractInto(ctx, f.extractor, conv, message, history)
	f.logger.Debug("facts merged", zap.String("session_id", conv.SessionID), zap.Strings("changed", changed))

	missing := Missing(EmergencyRequired, conv.Facts)
	progress := progressOf(EmergencyRequired, missing)
	if len(missing) > 0 {
		setAwaiting(conv, missing[0])
		return Outcome{
			Reply:    f.composer.EmergencyPrompt(missing[0], progress),
			Progress: progress,
			Missing:  missing,
		}, nil
	}

	ticket := entities.NewTicket(f.newID(), entities.EmergencyFactsFrom(conv.Facts), f.now())
	if err := f.tickets.Create(ctx, ticket); err != nil {
		return Outcome{}, fmt.Errorf("creating ticket: %w", err)
	}
	f.logger.Info("emergency ticket created",
		zap.String("session_id", conv.SessionID),
		zap.String("ticket_id", ticket.ID),
		zap.String("type", string(ticket.Type)),
		zap.String("priority", string(ticket.Priority)))

	conv.RecordID = ticket.ID
	conv.Stage = entities.StageResolved
	setAwaiting(conv, AwaitingContact)
	return Outcome{
		Reply:     f.composer.TicketSummary(ticket),
		HasRecord: true,
		Progress:  progress,
		Priority:  ticket.Priority,
	}, nil
}

// answerContact records the reply to the contact question and closes.
func (f *EmergencyFlow) answerContact(ctx context.Context, conv *entities.Conversation, message string) (Outcome, error) {
	wants := IsAffirmative(message)
	now := f.now()
	out := Outcome{HasRecord: true, Completed: true, Progress: progressOf(EmergencyRequired, nil)}

	ticket, err := f.tickets.Get(ctx, conv.RecordID)
	if err != nil {
		f.logger.Warn("ticket unavailable for contact answer", zap.String("ticket_id", conv.RecordID), zap.Error(err))
	} else {
		ticket.WantsContact = &wants
		ticket.UpdatedAt = now
		if err := f.tickets.Update(ctx, ticket); err != nil {
			return Outcome{}, fmt.Errorf("updating ticket: %w", err)
		}
		out.Priority = ticket.Priority
	}

	if conv.Metadata == nil {
		conv.Metadata = map[string]any{}
	}
	conv.Metadata[MetaWantsContact] = wants
	conv.Finish(entities.StageClosed, now)
	out.Reply = f.composer.Closing(wants)
	return out, nil
}

// IsAffirmative reports whether a short answer means yes. A leading "no"
// always means no.
func IsAffirmative(message string) bool {
	lower := strings.ToLower(message)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if len(words) == 0 || words[0] == "no" {
		return false
	}
	if strings.Contains(lower, "por favor") {
		return true
	}
	for _, w := range words {
		if affirmatives[w] {
			return true
		}
	}
	return false
}
