package sanitize

import (
	"regexp"
	"unicode/utf8"
)

// Plain email addresses (case-insensitive)
var reEmail = regexp.MustCompile(`(?i)[A-Z0-9._%+\-]+@[A-Z0-9.\-]+\.[A-Z]{2,}`)

// Common phone shapes: +xx..., (xxx) xxx-xxxx, 98xx... and so on.
// Only digits, spaces, minus, dot, parens and plus are allowed; at least
// 9 digits total so short numerics stay untouched.
var rePhone = regexp.MustCompile(`\+?\d[\d\s\-\.()]{7,}\d`)

// RedactPII masks emails and phone numbers in free-text remarks before they
// leave the system in listings or exports.
func RedactPII(s string) string {
	if s == "" {
		return s
	}
	s = reEmail.ReplaceAllString(s, "[redacted email]")
	s = rePhone.ReplaceAllString(s, "[redacted phone]")
	return s
}

// Summary truncates a remark at a word boundary for list views. Counted in
// runes so multi-byte remarks never get cut mid-character.
func Summary(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	i := max
	for i > 0 && runes[i] != ' ' {
		i--
	}
	if i <= 0 {
		i = max
	}
	return string(runes[:i]) + "…"
}
