package dialogue

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// FormatCLP renders an amount in pesos with dot thousands separators and
// no decimals: 18500 -> "$18.500".
func FormatCLP(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return "$" + sign + b.String()
}

// FormatDate renders dd/mm/yyyy.
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}

// FormatConsumption renders cubic meters without trailing zeros.
func FormatConsumption(m3 float64) string {
	return strconv.FormatFloat(m3, 'f', -1, 64) + " m³"
}

// Trend classifies a period-over-period change.
type Trend int

const (
	TrendStable Trend = iota
	TrendIncreased
	TrendDecreased
)

func (t Trend) String() string {
	switch t {
	case TrendIncreased:
		return "increased"
	case TrendDecreased:
		return "decreased"
	}
	return "stable"
}

// StableBand is the absolute percentage within which a change counts as stable.
const StableBand = 10.0

// Change is the percentage change of the current value over the previous one.
type Change struct {
	Percent float64
	Trend   Trend
}

// ConsumptionChange computes (current-previous)/previous*100. ok is false
// when previous is zero.
func ConsumptionChange(current, previous float64) (Change, bool) {
	if previous == 0 {
		return Change{}, false
	}
	pct := (current - previous) / previous * 100
	c := Change{Percent: pct}
	switch {
	case pct > StableBand:
		c.Trend = TrendIncreased
	case pct < -StableBand:
		c.Trend = TrendDecreased
	}
	return c, true
}

// String renders the signed change with one decimal, e.g. "+5.3%".
func (c Change) String() string {
	return fmt.Sprintf("%+.1f%%", roundTo(c.Percent, 1))
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
