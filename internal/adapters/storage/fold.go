// Package storage holds helpers shared by the record repositories.
package storage

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
)

// FoldName lowercases s and strips diacritics so "Pérez" matches "perez".
func FoldName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.Join(strings.Fields(out), " "))
}

// SortRecent orders invoices most recent first: period, then issue date, then id.
func SortRecent(invoices []entities.Invoice) {
	sort.SliceStable(invoices, func(i, j int) bool {
		a, b := invoices[i], invoices[j]
		if a.Period != b.Period {
			return a.Period > b.Period
		}
		if !a.IssueDate.Equal(b.IssueDate) {
			return a.IssueDate.After(b.IssueDate)
		}
		return a.ID > b.ID
	})
}
