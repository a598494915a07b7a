package entities

import "time"

// PaymentStatus is the invoice payment state.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pendiente"
	PaymentPaid      PaymentStatus = "pagada"
	PaymentOverdue   PaymentStatus = "vencida"
	PaymentCancelled PaymentStatus = "anulada"
)

// Label returns the display name.
func (s PaymentStatus) Label() string {
	switch s {
	case PaymentPending:
		return "Pendiente"
	case PaymentPaid:
		return "Pagada"
	case PaymentOverdue:
		return "Vencida"
	case PaymentCancelled:
		return "Anulada"
	}
	return string(s)
}

// Emoji returns the status marker shown next to the label.
func (s PaymentStatus) Emoji() string {
	switch s {
	case PaymentPending:
		return "⏳"
	case PaymentPaid:
		return "✅"
	case PaymentOverdue:
		return "⚠️"
	case PaymentCancelled:
		return "❌"
	}
	return "📄"
}

// Invoice is a water bill ("boleta"). Read-only to the conversation core.
type Invoice struct {
	ID              string
	CustomerName    string
	RUT             string
	Address         string
	IssueDate       time.Time
	Period          string // YYYY-MM
	Consumption     float64
	Amount          int64 // CLP, no decimals
	PreviousReading *float64
	CurrentReading  *float64
	DueDate         *time.Time
	Status          PaymentStatus
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// MeterConsumption derives consumption from meter readings when both are known.
func (i *Invoice) MeterConsumption() float64 {
	if i.PreviousReading != nil && i.CurrentReading != nil {
		return *i.CurrentReading - *i.PreviousReading
	}
	return i.Consumption
}

// DailyConsumption assumes a 30-day billing period.
func (i *Invoice) DailyConsumption() float64 {
	return i.Consumption / 30
}

// DaysUntilDue returns calendar days from now to the due date.
// The second value is false when the invoice has no due date.
func (i *Invoice) DaysUntilDue(now time.Time) (int, bool) {
	if i.DueDate == nil {
		return 0, false
	}
	return CalendarDaysBetween(now, *i.DueDate), true
}

// IsOverdue reports whether the due date has passed for an unpaid invoice.
func (i *Invoice) IsOverdue(now time.Time) bool {
	if i.Status == PaymentOverdue {
		return true
	}
	if i.Status == PaymentPaid || i.Status == PaymentCancelled {
		return false
	}
	days, ok := i.DaysUntilDue(now)
	return ok && days < 0
}

// CalendarDaysBetween counts whole calendar days from a to b, each read in
// its own location.
func CalendarDaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	from := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	to := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}

// LookupResult is the outcome of an invoice lookup by natural key.
type LookupResult struct {
	Found    bool
	Invoice  *Invoice
	Invoices []Invoice // most recent first
}

// NotFound is the empty lookup result.
func NotFound() LookupResult {
	return LookupResult{}
}

// Found wraps a non-empty list of invoices, most recent first.
func Found(invoices []Invoice) LookupResult {
	if len(invoices) == 0 {
		return NotFound()
	}
	return LookupResult{Found: true, Invoice: &invoices[0], Invoices: invoices}
}
