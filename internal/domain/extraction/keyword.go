package extraction

import (
	"context"
	"strings"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
)

// Category maps a keyword set to one value.
type Category struct {
	Value    string
	Keywords []string
}

// KeywordStrategy returns at most one guess for a single key, checking
// categories in priority order. It does nothing once the key is known.
type KeywordStrategy struct {
	key        string
	categories []Category
}

// NewKeywordStrategy creates the keyword tier.
func NewKeywordStrategy(key string, categories ...Category) *KeywordStrategy {
	return &KeywordStrategy{key: key, categories: categories}
}

// Name implements Strategy.
func (s *KeywordStrategy) Name() string { return "keyword" }

// Extract implements Strategy. Matching is a literal lowercase substring test.
func (s *KeywordStrategy) Extract(ctx context.Context, in Input) (Result, error) {
	if in.Known.Has(s.key) {
		return Result{}, nil
	}
	lower := strings.ToLower(in.Message)
	for _, c := range s.categories {
		for _, k := range c.Keywords {
			if strings.Contains(lower, k) {
				return Result{Facts: entities.Facts{s.key: c.Value}}, nil
			}
		}
	}
	return Result{}, nil
}

// BillingKeywords is the intent fallback, most specific category first.
func BillingKeywords() *KeywordStrategy {
	return NewKeywordStrategy(entities.KeyIntent,
		Category{string(entities.IntentCompare), []string{"comparar", "comparación", "diferencia"}},
		Category{string(entities.IntentConsumption), []string{"consumo", "gasto", "metros", "m3", "m³"}},
		Category{string(entities.IntentAmount), []string{"monto", "pagar", "cuanto debo", "cuánto debo", "valor", "precio"}},
		Category{string(entities.IntentPaymentStatus), []string{"estado", "pagada", "pendiente", "vencida"}},
		Category{string(entities.IntentViewInvoice), []string{"ver", "mostrar", "boleta", "factura"}},
		Category{string(entities.IntentViewInvoice), []string{"consulta"}},
	)
}

// EmergencyKeywords is the emergency type fallback, most severe first.
func EmergencyKeywords() *KeywordStrategy {
	return NewKeywordStrategy(entities.KeyEmergencyType,
		Category{string(entities.EmergencyMainBreak), []string{"matriz", "rotura de matriz"}},
		Category{string(entities.EmergencyContaminated), []string{"contaminad", "sucia", "turbia", "mal olor", "color raro", "café"}},
		Category{string(entities.EmergencyPipeBreak), []string{"cañería", "caneria", "tubería", "tuberia", "cañeria"}},
		Category{string(entities.EmergencyNoWater), []string{"sin agua", "no hay agua", "no tengo agua", "no sale agua", "corte de agua"}},
		Category{string(entities.EmergencyLowPressure), []string{"presión", "presion", "poca agua", "sale poca"}},
		Category{string(entities.EmergencyLeak), []string{"fuga", "filtración", "filtracion", "gotea", "escape", "pierde agua"}},
	)
}
