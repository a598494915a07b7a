package entities

import (
	"fmt"
	"sort"
	"strings"
)

// Billing fact keys.
const (
	KeyIntent       = "motivo_consulta"
	KeyRUT          = "rut"
	KeyPeriod       = "periodo_interes"
	KeyWantsCompare = "quiere_comparar"
	KeyHasInvoice   = "tiene_boleta"
)

// Emergency fact keys.
const (
	KeyEmergencyType = "tipo_emergencia"
	KeySector        = "sector"
	KeyReporterName  = "nombre_usuario"
	KeyAddress       = "direccion"
	KeyPhone         = "telefono"
	KeyDescription   = "descripcion"
	KeyMeterRunning  = "medidor_corriendo"
	KeyWaterAmount   = "cantidad_agua"
	KeyPhoto         = "fotografia"
	KeyDate          = "fecha"
)

// Facts is the open key/value view of collected facts used at the storage
// boundary. Values are strings or booleans.
type Facts map[string]any

// Merge copies non-empty values from update into f and returns the keys
// that changed. Empty values never erase a known key.
func (f Facts) Merge(update Facts) []string {
	var changed []string
	for k, v := range update {
		if isEmptyValue(v) {
			continue
		}
		if old, ok := f[k]; ok && old == v {
			continue
		}
		f[k] = v
		changed = append(changed, k)
	}
	sort.Strings(changed)
	return changed
}

// Has reports whether key is set to a non-empty value.
func (f Facts) Has(key string) bool {
	v, ok := f[key]
	return ok && !isEmptyValue(v)
}

// String returns the value of key formatted as a string.
func (f Facts) String(key string) string {
	switch v := f[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Bool returns the boolean value of key and whether it was set.
func (f Facts) Bool(key string) (bool, bool) {
	switch v := f[key].(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(v) {
		case "true", "si", "sí", "yes":
			return true, true
		case "false", "no":
			return false, true
		}
	}
	return false, false
}

// Keys returns the set keys in sorted order.
func (f Facts) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy.
func (f Facts) Clone() Facts {
	out := make(Facts, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

// Intent is the billing query reason.
type Intent string

const (
	IntentViewInvoice   Intent = "ver_boleta"
	IntentAmount        Intent = "consultar_monto"
	IntentConsumption   Intent = "consultar_consumo"
	IntentCompare       Intent = "comparar_periodos"
	IntentPaymentStatus Intent = "estado_pago"
	IntentGeneral       Intent = "informacion_general"
	IntentOther         Intent = "otro"
)

// BillingIntents is the closed intent vocabulary.
var BillingIntents = []Intent{
	IntentViewInvoice, IntentAmount, IntentConsumption, IntentCompare,
	IntentPaymentStatus, IntentGeneral, IntentOther,
}

// IsComparative reports whether the intent asks for several invoices.
func (i Intent) IsComparative() bool {
	return strings.Contains(string(i), "compar")
}

// BillingFacts is the typed view of a billing conversation's facts.
type BillingFacts struct {
	Intent       Intent
	RUT          string
	Period       string
	WantsCompare bool
	HasInvoice   *bool
}

// BillingFactsFrom reads the typed view from the storage map.
func BillingFactsFrom(f Facts) BillingFacts {
	b := BillingFacts{
		Intent: Intent(f.String(KeyIntent)),
		RUT:    f.String(KeyRUT),
		Period: f.String(KeyPeriod),
	}
	b.WantsCompare, _ = f.Bool(KeyWantsCompare)
	if v, ok := f.Bool(KeyHasInvoice); ok {
		b.HasInvoice = &v
	}
	return b
}

// Facts converts back to the storage map, omitting unset fields.
func (b BillingFacts) Facts() Facts {
	f := Facts{}
	if b.Intent != "" {
		f[KeyIntent] = string(b.Intent)
	}
	if b.RUT != "" {
		f[KeyRUT] = b.RUT
	}
	if b.Period != "" {
		f[KeyPeriod] = b.Period
	}
	if b.WantsCompare {
		f[KeyWantsCompare] = true
	}
	if b.HasInvoice != nil {
		f[KeyHasInvoice] = *b.HasInvoice
	}
	return f
}

// Comparative reports whether the conversation should compare periods.
func (b BillingFacts) Comparative() bool {
	return b.WantsCompare || b.Intent.IsComparative()
}

// EmergencyFacts is the typed view of an emergency conversation's facts.
type EmergencyFacts struct {
	Type         EmergencyType
	Sector       Sector
	ReporterName string
	Address      string
	Phone        string
	Description  string
	MeterRunning *bool
	WaterAmount  string
	HasPhoto     bool
	Date         string
}

// EmergencyFactsFrom reads the typed view from the storage map.
func EmergencyFactsFrom(f Facts) EmergencyFacts {
	e := EmergencyFacts{
		Type:         EmergencyType(f.String(KeyEmergencyType)),
		Sector:       Sector(f.String(KeySector)),
		ReporterName: f.String(KeyReporterName),
		Address:      f.String(KeyAddress),
		Phone:        f.String(KeyPhone),
		Description:  f.String(KeyDescription),
		WaterAmount:  f.String(KeyWaterAmount),
		Date:         f.String(KeyDate),
	}
	if v, ok := f.Bool(KeyMeterRunning); ok {
		e.MeterRunning = &v
	}
	e.HasPhoto, _ = f.Bool(KeyPhoto)
	return e
}

// Facts converts back to the storage map, omitting unset fields.
func (e EmergencyFacts) Facts() Facts {
	f := Facts{}
	set := func(k, v string) {
		if v != "" {
			f[k] = v
		}
	}
	set(KeyEmergencyType, string(e.Type))
	set(KeySector, string(e.Sector))
	set(KeyReporterName, e.ReporterName)
	set(KeyAddress, e.Address)
	set(KeyPhone, e.Phone)
	set(KeyDescription, e.Description)
	set(KeyWaterAmount, e.WaterAmount)
	set(KeyDate, e.Date)
	if e.MeterRunning != nil {
		f[KeyMeterRunning] = *e.MeterRunning
	}
	if e.HasPhoto {
		f[KeyPhoto] = true
	}
	return f
}
