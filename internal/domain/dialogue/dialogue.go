// Package dialogue drives a conversation through its stages: collect the
// required facts, perform the one-time record step, then answer follow-ups
// until a terminal trigger closes the session.
package dialogue

import (
	"context"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
	"github.com/0xcro3dile/coopchat-go/internal/domain/extraction"
)

// Extractor produces facts from one utterance.
type Extractor interface {
	Extract(ctx context.Context, in extraction.Input) extraction.Result
}

// Progress counts required facts.
type Progress struct {
	Collected int
	Total     int
}

// Outcome is the result of one user turn.
type Outcome struct {
	Reply     string
	HasRecord bool
	Progress  Progress
	Missing   []string
	Priority  entities.Priority
	Completed bool
}

// Flow is the state machine of one domain. Step mutates conv in place; the
// caller persists it.
type Flow interface {
	Domain() entities.Domain
	Welcome() string
	Required() []string
	Step(ctx context.Context, conv *entities.Conversation, message string, history []entities.Turn) (Outcome, error)
}

// Missing returns the required keys not yet in facts, in order.
func Missing(required []string, facts entities.Facts) []string {
	var out []string
	for _, k := range required {
		if !facts.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

func progressOf(required, missing []string) Progress {
	return Progress{Collected: len(required) - len(missing), Total: len(required)}
}

func extractInto(ctx context.Context, ex Extractor, conv *entities.Conversation, message string, history []entities.Turn) []string {
	res := ex.Extract(ctx, extraction.Input{
		Domain:   conv.Domain,
		Message:  message,
		Known:    conv.Facts.Clone(),
		History:  history,
		Awaiting: conv.Awaiting,
		Repeats:  repeatsOf(conv),
	})
	return conv.Facts.Merge(res.Facts)
}

// MetaAwaitingRepeats counts how many times in a row the pending question was
// asked again.
const MetaAwaitingRepeats = "awaiting_repeats"

// setAwaiting records the next pending question and keeps the repeat count.
func setAwaiting(conv *entities.Conversation, key string) {
	if key != "" && key == conv.Awaiting {
		if conv.Metadata == nil {
			conv.Metadata = map[string]any{}
		}
		conv.Metadata[MetaAwaitingRepeats] = repeatsOf(conv) + 1
	} else {
		delete(conv.Metadata, MetaAwaitingRepeats)
	}
	conv.Awaiting = key
}

// repeatsOf reads the counter. Stored metadata round-trips through JSON.
func repeatsOf(conv *entities.Conversation) int {
	switch n := conv.Metadata[MetaAwaitingRepeats].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
