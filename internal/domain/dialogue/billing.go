package dialogue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
	"github.com/0xcro3dile/coopchat-go/internal/domain/ports"
)

// BillingRequired is the fact order of a billing conversation.
var BillingRequired = []string{entities.KeyIntent, entities.KeyRUT}

const (
	lookupLimit = 6
	linkedLimit = 3
)

var billingClosers = [][]string{
	{"no", "gracias"}, {"eso", "es", "todo"}, {"chao"}, {"adiós"}, {"adios"},
	{"hasta", "luego"}, {"nada", "más"}, {"nada", "mas"},
}

// closerFillers may surround a closing phrase.
var closerFillers = map[string]bool{"gracias": true, "muchas": true, "ok": true, "bueno": true, "y": true, "entonces": true}

// BillingFlow answers invoice questions.
type BillingFlow struct {
	extractor Extractor
	invoices  ports.InvoiceRepository
	composer  *Composer
	now       ports.Clock
	logger    *zap.Logger
}

// NewBillingFlow creates the billing state machine.
func NewBillingFlow(extractor Extractor, invoices ports.InvoiceRepository, composer *Composer, clock ports.Clock, logger *zap.Logger) *BillingFlow {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingFlow{
		extractor: extractor,
		invoices:  invoices,
		composer:  composer,
		now:       clock,
		logger:    logger.With(zap.String("component", "billing_flow")),
	}
}

// Domain implements Flow.
func (f *BillingFlow) Domain() entities.Domain { return entities.DomainBilling }

// Welcome implements Flow.
func (f *BillingFlow) Welcome() string { return BillingWelcome }

// Required implements Flow.
func (f *BillingFlow) Required() []string { return BillingRequired }

// Step implements Flow.
func (f *BillingFlow) Step(ctx context.Context, conv *entities.Conversation, message string, history []entities.Turn) (Outcome, error) {
	switch conv.Stage {
	case entities.StageResolved, entities.StageComparing:
		return f.followUp(ctx, conv, message, history)
	}
	conv.Stage = entities.StageCollecting
	return f.collect(ctx, conv, message, history)
}

func (f *BillingFlow) collect(ctx context.Context, conv *entities.Conversation, message string, history []entities.Turn) (Outcome, error) {
	changed := extractInto(ctx, f.extractor, conv, message, history)
	f.logger.Debug("facts merged", zap.String("session_id", conv.SessionID), zap.Strings("changed", changed))

	missing := Missing(BillingRequired, conv.Facts)
	progress := progressOf(BillingRequired, missing)
	facts := entities.BillingFactsFrom(conv.Facts)
	if len(missing) > 0 {
		setAwaiting(conv, missing[0])
		return Outcome{
			Reply:    f.composer.BillingPrompt(missing[0], facts),
			Progress: progress,
			Missing:  missing,
		}, nil
	}

	lookup, err := f.invoices.FindByKey(ctx, facts.RUT)
	if err != nil {
		return Outcome{}, fmt.Errorf("looking up invoices: %w", err)
	}
	if !lookup.Found {
		f.logger.Info("no invoices for rut", zap.String("session_id", conv.SessionID))
		conv.Facts[entities.KeyHasInvoice] = false
		setAwaiting(conv, entities.KeyRUT)
		return Outcome{Reply: NoInvoiceReply, Progress: progress}, nil
	}

	conv.Facts[entities.KeyHasInvoice] = true
	setAwaiting(conv, "")
	primary := pickPrimary(lookup.Invoices, facts.Period)
	conv.RecordID = primary.ID

	out := Outcome{HasRecord: true, Progress: progress}
	if facts.Comparative() {
		conv.Stage = entities.StageComparing
		shown := lookup.Invoices
		if len(shown) > linkedLimit {
			shown = shown[:linkedLimit]
		}
		conv.LinkedRecordIDs = conv.LinkedRecordIDs[:0]
		for _, inv := range shown {
			conv.LinkedRecordIDs = append(conv.LinkedRecordIDs, inv.ID)
		}
		out.Reply = f.composer.Comparison(shown)
		return out, nil
	}

	conv.Stage = entities.StageResolved
	out.Reply = f.composer.InvoiceSummary(facts.Intent, primary)
	return out, nil
}

func (f *BillingFlow) followUp(ctx context.Context, conv *entities.Conversation, message string, history []entities.Turn) (Outcome, error) {
	if isBillingCloser(message) {
		conv.Finish(entities.StageClosed, f.now())
		return Outcome{Reply: BillingFarewell, HasRecord: true, Completed: true}, nil
	}

	out := Outcome{HasRecord: true, Progress: progressOf(BillingRequired, nil)}
	if conv.Stage == entities.StageComparing {
		invoices, err := f.invoices.FindAllByKey(ctx, conv.Facts.String(entities.KeyRUT), lookupLimit)
		if err != nil {
			return Outcome{}, fmt.Errorf("loading invoices for comparison: %w", err)
		}
		out.Reply = f.composer.CompareAnswer(ctx, message, invoices)
		return out, nil
	}

	var inv *entities.Invoice
	if conv.RecordID != "" {
		loaded, err := f.invoices.Get(ctx, conv.RecordID)
		switch {
		case err == nil:
			inv = loaded
		case errors.Is(err, ports.ErrNotFound):
			f.logger.Warn("attached invoice missing", zap.String("record_id", conv.RecordID))
		default:
			return Outcome{}, fmt.Errorf("loading invoice: %w", err)
		}
	}

	answer, err := f.composer.Answer(ctx, AnswerRequest{
		Domain:   entities.DomainBilling,
		Question: message,
		Invoice:  inv,
		History:  history,
	})
	if err != nil {
		f.logger.Warn("open-ended answer failed", zap.String("session_id", conv.SessionID), zap.Error(err))
		out.Reply = LimitedReply
		return out, nil
	}
	out.Reply = answer.Text + BillingFollowUp
	return out, nil
}

// pickPrimary prefers the invoice of the requested period.
func pickPrimary(invoices []entities.Invoice, period string) *entities.Invoice {
	if period != "" {
		for i := range invoices {
			if invoices[i].Period == period {
				return &invoices[i]
			}
		}
	}
	return &invoices[0]
}

// isBillingCloser reports whether message only says goodbye. Questions never
// close, and a closing phrase followed by more words is a follow-up.
func isBillingCloser(message string) bool {
	if strings.ContainsAny(message, "?¿") {
		return false
	}
	words := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	closed := false
	for i := 0; i < len(words); {
		if n := closerAt(words[i:]); n > 0 {
			closed = true
			i += n
			continue
		}
		if !closerFillers[words[i]] {
			return false
		}
		i++
	}
	return closed
}

func closerAt(words []string) int {
	for _, c := range billingClosers {
		if len(words) >= len(c) && slices.Equal(words[:len(c)], c) {
			return len(c)
		}
	}
	return 0
}
