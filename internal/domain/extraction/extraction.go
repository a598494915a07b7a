// Package extraction turns one user utterance into a partial fact map using
// an ordered chain of strategies. Later strategies only fill keys that no
// earlier strategy produced or claimed in the same call.
package extraction

import (
	"context"
	"maps"
	"sort"

	"go.uber.org/zap"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
)

// Input is everything a strategy may look at.
type Input struct {
	Domain   entities.Domain
	Message  string
	Known    entities.Facts
	History  []entities.Turn
	Awaiting string
	// Repeats counts how many times in a row the Awaiting question was asked
	// again.
	Repeats int
	// Claimed holds the keys earlier tiers filled or marked ambiguous in this
	// call. The chain sets it.
	Claimed map[string]bool
}

// Result is a strategy's contribution. Ambiguous keys had competing
// candidates; they are claimed so later strategies leave them empty.
type Result struct {
	Facts     entities.Facts
	Ambiguous []string
}

// Strategy is one extraction tier.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, in Input) (Result, error)
}

// Chain runs strategies in order and merges their results.
type Chain struct {
	strategies []Strategy
	logger     *zap.Logger
}

// NewChain creates an extractor from ordered strategies.
func NewChain(logger *zap.Logger, strategies ...Strategy) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{
		strategies: strategies,
		logger:     logger.With(zap.String("component", "extractor")),
	}
}

// Extract never fails: a failing tier is logged and skipped.
func (c *Chain) Extract(ctx context.Context, in Input) Result {
	out := Result{Facts: entities.Facts{}}
	claimed := map[string]bool{}

	for _, s := range c.strategies {
		in.Claimed = maps.Clone(claimed)
		res, err := s.Extract(ctx, in)
		if err != nil {
			c.logger.Warn("extraction tier degraded",
				zap.String("tier", s.Name()),
				zap.Error(err))
			continue
		}

		var filled []string
		for k, v := range res.Facts {
			if claimed[k] || isEmpty(v) {
				continue
			}
			out.Facts[k] = v
			claimed[k] = true
			filled = append(filled, k)
		}
		for _, k := range res.Ambiguous {
			if !claimed[k] {
				claimed[k] = true
				out.Ambiguous = append(out.Ambiguous, k)
			}
		}
		if len(filled) > 0 || len(res.Ambiguous) > 0 {
			sort.Strings(filled)
			c.logger.Debug("extraction tier result",
				zap.String("tier", s.Name()),
				zap.Strings("filled", filled),
				zap.Strings("ambiguous", res.Ambiguous))
		}
	}
	return out
}

// Strategies returns the tier names in order.
func (c *Chain) Strategies() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	}
	return false
}
