package extraction

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	rutPattern   = regexp.MustCompile(`\b(\d{1,2}\.?\d{3}\.?\d{3}[-.]?[\dkK])\b`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s-]{5,18}\d`)
)

// NormalizeRUT strips dots and separators and inserts one "-" before the
// check character. The check character keeps its case. Idempotent.
func NormalizeRUT(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch r {
		case '.', '-', ' ':
			continue
		}
		b.WriteRune(r)
	}
	compact := b.String()
	if len(compact) < 2 {
		return compact
	}
	return compact[:len(compact)-1] + "-" + compact[len(compact)-1:]
}

// FindRUT returns the first identifier-shaped token, normalized. A token
// written with a dot or dash wins over a bare run of digits, which is as
// likely to be a phone number.
func FindRUT(text string) (string, bool) {
	matches := rutPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return "", false
	}
	for _, m := range matches {
		if strings.ContainsAny(m[1], ".-") {
			return NormalizeRUT(m[1]), true
		}
	}
	return NormalizeRUT(matches[0][1]), true
}

// NormalizePhone keeps digits and a leading "+".
func NormalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	if strings.HasPrefix(raw, "+") {
		b.WriteByte('+')
	}
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FindPhone returns the first token with 7 to 15 digits, normalized.
func FindPhone(text string) (string, bool) {
	for _, m := range phonePattern.FindAllString(text, -1) {
		phone := NormalizePhone(m)
		if n := len(digitsOf(phone)); n >= 7 && n <= 15 {
			return phone, true
		}
	}
	return "", false
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// digitsGrounded reports whether the digits of value occur contiguously in
// the digits of the utterance.
func digitsGrounded(value, utterance string) bool {
	d := digitsOf(value)
	return d != "" && strings.Contains(digitsOf(utterance), d)
}

// wordsGrounded reports whether any word of three or more letters of value
// appears in the utterance.
func wordsGrounded(value, utterance string) bool {
	lower := strings.ToLower(utterance)
	for _, w := range strings.FieldsFunc(strings.ToLower(value), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(w)) >= 3 && strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
