package extraction

import (
	"time"

	"go.uber.org/zap"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
	"github.com/0xcro3dile/coopchat-go/internal/domain/ports"
)

// NewDomainChain wires the standard tiers for a domain: model (when llm is
// set), patterns, keywords and, for emergencies, pending free-text answers.
func NewDomainChain(domain entities.Domain, llm ports.LLMService, knowledge ContextSource, timeout time.Duration, logger *zap.Logger) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	var tiers []Strategy
	if llm != nil {
		tiers = append(tiers, NewModelStrategy(llm, knowledge, SchemaFor(domain), timeout, logger))
	}
	switch domain {
	case entities.DomainEmergency:
		tiers = append(tiers, EmergencyPatterns(), EmergencyKeywords(), EmergencyPendingAnswers())
	default:
		tiers = append(tiers, BillingPatterns(), BillingKeywords())
	}
	return NewChain(logger.With(zap.String("domain", string(domain))), tiers...)
}
