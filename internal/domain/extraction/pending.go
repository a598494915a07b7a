package extraction

import (
	"context"
	"slices"
	"strings"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
)

// PendingAnswerStrategy treats the whole utterance as the answer to a
// free-text question the assistant just asked. It stays out when earlier
// tiers read an unrelated fact from the same utterance, since the user was
// then answering something else.
type PendingAnswerStrategy struct {
	freeText map[string]bool
	// fallbacks are used when the awaited key has a closed vocabulary and
	// the question was already asked again once.
	fallbacks map[string]string
	// companions are keys that may be read from an answer to the awaited
	// key without making it a different answer.
	companions map[string][]string
}

// NewPendingAnswerStrategy creates the tier for the given free-text keys.
func NewPendingAnswerStrategy(freeText []string, fallbacks map[string]string, companions map[string][]string) *PendingAnswerStrategy {
	keys := make(map[string]bool, len(freeText))
	for _, k := range freeText {
		keys[k] = true
	}
	return &PendingAnswerStrategy{freeText: keys, fallbacks: fallbacks, companions: companions}
}

// EmergencyPendingAnswers captures name, address and description answers and
// files a twice-unrecognised answer to the type question as "otro".
func EmergencyPendingAnswers() *PendingAnswerStrategy {
	return NewPendingAnswerStrategy(
		[]string{entities.KeyReporterName, entities.KeyAddress, entities.KeyDescription},
		map[string]string{entities.KeyEmergencyType: string(entities.EmergencyOther)},
		map[string][]string{
			entities.KeyAddress: {entities.KeySector},
			entities.KeyDescription: {
				entities.KeyEmergencyType, entities.KeySector, entities.KeyWaterAmount,
				entities.KeyMeterRunning, entities.KeyPhoto,
			},
		},
	)
}

// Name implements Strategy.
func (s *PendingAnswerStrategy) Name() string { return "pending_answer" }

// Extract implements Strategy.
func (s *PendingAnswerStrategy) Extract(ctx context.Context, in Input) (Result, error) {
	answer := strings.TrimSpace(in.Message)
	if in.Awaiting == "" || answer == "" || in.Claimed[in.Awaiting] {
		return Result{}, nil
	}
	if s.answersOther(in) {
		return Result{}, nil
	}
	if s.freeText[in.Awaiting] {
		return Result{Facts: entities.Facts{in.Awaiting: answer}}, nil
	}
	if v, ok := s.fallbacks[in.Awaiting]; ok && in.Repeats > 0 {
		return Result{Facts: entities.Facts{in.Awaiting: v}}, nil
	}
	return Result{}, nil
}

func (s *PendingAnswerStrategy) answersOther(in Input) bool {
	for k, claimed := range in.Claimed {
		if !claimed || k == in.Awaiting || in.Known.Has(k) {
			continue
		}
		if !slices.Contains(s.companions[in.Awaiting], k) {
			return true
		}
	}
	return false
}
