package extraction

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
)

// Match is one rule outcome.
type Match struct {
	Value     any
	Ambiguous bool
}

// Rule extracts one key. lower is the lowercased message.
type Rule struct {
	Key   string
	Apply func(message, lower string) (Match, bool)
}

// PatternStrategy applies deterministic per-key rules; rules are independent.
type PatternStrategy struct {
	rules []Rule
}

// NewPatternStrategy creates the pattern tier from rules.
func NewPatternStrategy(rules ...Rule) *PatternStrategy {
	return &PatternStrategy{rules: rules}
}

// Name implements Strategy.
func (s *PatternStrategy) Name() string { return "pattern" }

// Extract implements Strategy.
func (s *PatternStrategy) Extract(ctx context.Context, in Input) (Result, error) {
	res := Result{Facts: entities.Facts{}}
	lower := strings.ToLower(in.Message)
	for _, r := range s.rules {
		if _, done := res.Facts[r.Key]; done {
			continue
		}
		m, ok := r.Apply(in.Message, lower)
		if !ok {
			continue
		}
		if m.Ambiguous {
			res.Ambiguous = append(res.Ambiguous, r.Key)
			continue
		}
		res.Facts[r.Key] = m.Value
	}
	return res, nil
}

// BillingPatterns are the deterministic rules for invoice queries.
func BillingPatterns() *PatternStrategy {
	return NewPatternStrategy(
		Rule{Key: entities.KeyRUT, Apply: matchRUT},
		Rule{Key: entities.KeyIntent, Apply: scoreIntent},
		Rule{Key: entities.KeyWantsCompare, Apply: matchCompareSignal},
		Rule{Key: entities.KeyPeriod, Apply: matchPeriod},
	)
}

// EmergencyPatterns are the deterministic rules for emergency reports.
func EmergencyPatterns() *PatternStrategy {
	return NewPatternStrategy(
		Rule{Key: entities.KeyPhone, Apply: matchPhone},
		Rule{Key: entities.KeySector, Apply: matchSector},
		Rule{Key: entities.KeyMeterRunning, Apply: matchMeter},
		Rule{Key: entities.KeyWaterAmount, Apply: matchWaterAmount},
		Rule{Key: entities.KeyPhoto, Apply: matchPhoto},
	)
}

func matchRUT(message, _ string) (Match, bool) {
	rut, ok := FindRUT(message)
	return Match{Value: rut}, ok
}

func matchPhone(message, _ string) (Match, bool) {
	phone, ok := FindPhone(message)
	return Match{Value: phone}, ok
}

type intentKeywords struct {
	intent   entities.Intent
	keywords []string
}

// intentScores counts keyword hits per intent; the unique maximum wins.
var intentScores = []intentKeywords{
	{entities.IntentAmount, []string{"monto", "pagar", "pago", "cuanto", "cuánto", "debo", "valor", "precio"}},
	{entities.IntentConsumption, []string{"consumo", "gasto", "metros", "m3", "m³", "cuanto gaste", "cuánto gaste"}},
	{entities.IntentCompare, []string{"comparar", "comparación", "diferencia", "meses", "períodos", "periodos"}},
	{entities.IntentViewInvoice, []string{"ver", "mostrar", "boleta", "factura", "estado"}},
	{entities.IntentPaymentStatus, []string{"estado", "pagada", "pendiente", "vencida", "pague", "pagué"}},
}

// ScoreIntent returns the best scoring intent. ambiguous is true when two
// or more intents tie at the top score.
func ScoreIntent(lower string) (intent entities.Intent, ambiguous, ok bool) {
	best, ties := 0, 0
	for _, c := range intentScores {
		n := 0
		for _, k := range c.keywords {
			if strings.Contains(lower, k) {
				n++
			}
		}
		switch {
		case n > best:
			best, ties, intent = n, 1, c.intent
		case n == best && n > 0:
			ties++
		}
	}
	if best == 0 {
		return "", false, false
	}
	if ties > 1 {
		return "", true, true
	}
	return intent, false, true
}

func scoreIntent(_, lower string) (Match, bool) {
	intent, ambiguous, ok := ScoreIntent(lower)
	if !ok {
		return Match{}, false
	}
	return Match{Value: string(intent), Ambiguous: ambiguous}, true
}

var compareSignals = []string{"compar", "diferen", "meses", "period"}

func matchCompareSignal(_, lower string) (Match, bool) {
	for _, s := range compareSignals {
		if strings.Contains(lower, s) {
			return Match{Value: true}, true
		}
	}
	return Match{}, false
}

var (
	periodPattern      = regexp.MustCompile(`\b(20\d{2})[-/](0[1-9]|1[0-2])\b`)
	monthPeriodPattern = regexp.MustCompile(`\b(enero|febrero|marzo|abril|mayo|junio|julio|agosto|septiembre|setiembre|octubre|noviembre|diciembre)\s+(?:de(?:l)?\s+)?(20\d{2})\b`)
	monthNumbers       = map[string]int{
		"enero": 1, "febrero": 2, "marzo": 3, "abril": 4, "mayo": 5, "junio": 6, "julio": 7,
		"agosto": 8, "septiembre": 9, "setiembre": 9, "octubre": 10, "noviembre": 11, "diciembre": 12,
	}
)

func matchPeriod(_, lower string) (Match, bool) {
	if m := periodPattern.FindStringSubmatch(lower); m != nil {
		return Match{Value: m[1] + "-" + m[2]}, true
	}
	if m := monthPeriodPattern.FindStringSubmatch(lower); m != nil {
		return Match{Value: fmt.Sprintf("%s-%02d", m[2], monthNumbers[m[1]])}, true
	}
	return Match{}, false
}

type sectorAlias struct {
	sector  entities.Sector
	aliases []string
}

var sectorAliases = []sectorAlias{
	{entities.SectorElMaiten1, []string{"el maitén 1", "el maiten 1", "maitén 1", "maiten 1", "el_maiten_1"}},
	{entities.SectorElMaiten2, []string{"el maitén 2", "el maiten 2", "maitén 2", "maiten 2", "el_maiten_2"}},
	{entities.SectorAnibana, []string{"anibana"}},
	{entities.SectorElMolino, []string{"el molino", "molino", "el_molino"}},
	{entities.SectorLaCompania, []string{"la compañía", "la compania", "compañía", "compania"}},
	{entities.SectorLaMorera, []string{"la morera", "morera", "la_morera"}},
	{entities.SectorSantaMargarita, []string{"santa margarita", "santa_margarita"}},
}

func matchSector(_, lower string) (Match, bool) {
	for _, s := range sectorAliases {
		for _, a := range s.aliases {
			if strings.Contains(lower, a) {
				return Match{Value: string(s.sector)}, true
			}
		}
	}
	// "maitén" without a number names two sectors
	if strings.Contains(lower, "maitén") || strings.Contains(lower, "maiten") {
		return Match{Ambiguous: true}, true
	}
	return Match{}, false
}

var meterPattern = regexp.MustCompile(`medidor\S*\s+(?:\S+\s+){0,3}?(no\s+(?:est[aá]\s+)?)?(corre|corriendo|gira|girando|avanza|avanzando)`)

func matchMeter(_, lower string) (Match, bool) {
	m := meterPattern.FindStringSubmatch(lower)
	if m == nil {
		return Match{}, false
	}
	return Match{Value: m[1] == ""}, true
}

var waterAmountPattern = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(litros|lts|l/min|m3|m³|baldes)`)

func matchWaterAmount(_, lower string) (Match, bool) {
	m := waterAmountPattern.FindStringSubmatch(lower)
	if m == nil {
		return Match{}, false
	}
	return Match{Value: m[1] + " " + m[2]}, true
}

var photoPattern = regexp.MustCompile(`(?:^|\s)(tengo|adjunto|envío|envio|mando|saqué|saque)\s[^.]*foto`)

func matchPhoto(_, lower string) (Match, bool) {
	if strings.Contains(lower, "no tengo foto") || strings.Contains(lower, "no tengo una foto") {
		return Match{}, false
	}
	if photoPattern.MatchString(lower) {
		return Match{Value: true}, true
	}
	return Match{}, false
}
