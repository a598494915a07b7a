package extraction

import (
	"regexp"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
)

// Kind is the value type of a fact key.
type Kind int

const (
	KindString Kind = iota
	KindBool
)

// Grounding selects how a model value is checked against the utterance.
type Grounding int

const (
	GroundNone Grounding = iota
	GroundDigits
	GroundWords
)

// KeySpec describes one key the model may return.
type KeySpec struct {
	Name        string
	Description string
	Kind        Kind
	Vocabulary  []string
	Format      *regexp.Regexp
	Grounding   Grounding
	// SignalOnly booleans are kept only when true.
	SignalOnly bool
	Normalize  func(string) string
}

// Schema is the closed key set of one domain.
type Schema struct {
	Domain        entities.Domain
	Preamble      string
	Keys          []KeySpec
	HistoryTurns  int
	ContextBudget int
	Example       string
}

// Spec returns the key spec by name.
func (s Schema) Spec(name string) (KeySpec, bool) {
	for _, k := range s.Keys {
		if k.Name == name {
			return k, true
		}
	}
	return KeySpec{}, false
}

var (
	periodFormat = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)
	dateFormat   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// BillingSchema is the key set for invoice queries.
func BillingSchema() Schema {
	intents := make([]string, len(entities.BillingIntents))
	for i, v := range entities.BillingIntents {
		intents[i] = string(v)
	}
	return Schema{
		Domain:        entities.DomainBilling,
		Preamble:      "Eres un asistente especializado en consultas de boletas de agua potable.",
		HistoryTurns:  3,
		ContextBudget: 1000,
		Keys: []KeySpec{
			{
				Name:        entities.KeyIntent,
				Description: "motivo de la consulta",
				Vocabulary:  intents,
			},
			{
				Name:        entities.KeyRUT,
				Description: "RUT del usuario en formato 12345678-9 (solo si lo menciona)",
				Grounding:   GroundDigits,
				Normalize:   NormalizeRUT,
			},
			{
				Name:        entities.KeyPeriod,
				Description: "período específico mencionado (formato YYYY-MM)",
				Format:      periodFormat,
			},
			{
				Name:        entities.KeyWantsCompare,
				Description: "true si menciona comparar",
				Kind:        KindBool,
				SignalOnly:  true,
			},
		},
		Example: `{"motivo_consulta": "consultar_monto", "rut": "12345678-9"}`,
	}
}

// EmergencySchema is the key set for emergency reports.
func EmergencySchema() Schema {
	sectors := make([]string, len(entities.Sectors))
	for i, v := range entities.Sectors {
		sectors[i] = string(v)
	}
	types := make([]string, len(entities.EmergencyTypes))
	for i, v := range entities.EmergencyTypes {
		types[i] = string(v)
	}
	return Schema{
		Domain:        entities.DomainEmergency,
		Preamble:      "Eres un asistente especializado en emergencias de agua potable de la Cooperativa de Agua Potable.",
		HistoryTurns:  5,
		ContextBudget: 2000,
		Keys: []KeySpec{
			{Name: entities.KeySector, Description: "sector del reporte", Vocabulary: sectors},
			{Name: entities.KeyEmergencyType, Description: "tipo de problema", Vocabulary: types},
			{Name: entities.KeyReporterName, Description: "nombre del usuario", Grounding: GroundWords},
			{Name: entities.KeyAddress, Description: "dirección completa", Grounding: GroundWords},
			{Name: entities.KeyPhone, Description: "número de teléfono (formato limpio)", Grounding: GroundDigits, Normalize: NormalizePhone},
			{Name: entities.KeyDescription, Description: "descripción detallada del problema"},
			{Name: entities.KeyMeterRunning, Description: "true si el medidor está corriendo, false si no", Kind: KindBool},
			{Name: entities.KeyWaterAmount, Description: "cantidad aproximada de agua que se fuga"},
			{Name: entities.KeyPhoto, Description: "true si mencionó que tiene foto", Kind: KindBool, SignalOnly: true},
			{Name: entities.KeyDate, Description: "fecha mencionada (formato YYYY-MM-DD)", Format: dateFormat},
		},
		Example: `{"sector": "el_molino", "telefono": "981494350", "descripcion": "Se rompió una cañería"}`,
	}
}

// SchemaFor returns the schema of a domain.
func SchemaFor(d entities.Domain) Schema {
	if d == entities.DomainEmergency {
		return EmergencySchema()
	}
	return BillingSchema()
}
