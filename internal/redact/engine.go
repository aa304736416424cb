// Package redact scrubs personally identifiable information from
// third-party text before it reaches the text-generation service or a log
// line. Matching is regex-based: every pattern is applied to the whole
// string once, with no interaction between patterns.
package redact

import (
	"regexp"
	"strings"
)

// Mode selects the redaction strategy.
type Mode string

const (
	// ForLogs replaces matches with generic category tokens. Maximal
	// scrubbing, no format preserved.
	ForLogs Mode = "for_logs"
	// ForModel replaces matches with shape-matching placeholders so a
	// downstream model still perceives that a value of that kind was
	// present without seeing it.
	ForModel Mode = "for_model"
)

// Category names one recognized kind of sensitive content.
type Category string

const (
	CategoryCPF         Category = "cpf"
	CategoryCNPJ        Category = "cnpj"
	CategoryEmail       Category = "email"
	CategoryPhone       Category = "phone"
	CategoryAddress     Category = "address"
	CategoryPostalCode  Category = "postal_code"
	CategoryPaymentCard Category = "payment_card"
	CategoryBankAccount Category = "bank_account"
	CategoryPassword    Category = "password"
	CategoryToken       Category = "token"
	CategoryGPS         Category = "gps"
	CategoryBirthDate   Category = "birth_date"
	CategoryPassport    Category = "passport"
	CategoryPixKey      Category = "pix_key"
)

// pattern pairs a compiled regex with its category and ForModel strategy.
type pattern struct {
	category Category
	re       *regexp.Regexp
	model    func(match string) string
}

// shapeMask replaces digits with X and letters with x, preserving
// punctuation, so the placeholder keeps the original format.
func shapeMask(match string) string {
	var b strings.Builder
	for _, r := range match {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune('X')
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			b.WriteRune('x')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// keywordMask keeps the leading keyword of a keyword+value phrase and
// replaces the value with a bracketed category marker.
func keywordMask(category Category) func(string) string {
	marker := " [" + string(category) + "]"
	return func(match string) string {
		if idx := strings.IndexAny(match, " :="); idx > 0 {
			return strings.TrimRight(match[:idx+1], " ") + marker
		}
		return marker
	}
}

// patterns are applied in declaration order. Longer or more specific
// formats come before the bare-digit fallbacks they would otherwise be
// swallowed by.
var patterns = []pattern{
	{CategoryPassword, regexp.MustCompile(`(?i)\b(?:senha|password|pwd)\s*[:=]?\s*\S+`), keywordMask(CategoryPassword)},
	{CategoryPixKey, regexp.MustCompile(`(?i)\bchave\s+pix\s*[:=]?\s*\S+`), keywordMask(CategoryPixKey)},
	{CategoryBankAccount, regexp.MustCompile(`(?i)\b(?:ag[êe]ncia|conta(?:\s+corrente)?)\s*[:=]?\s*[\d.\-]{3,12}`), keywordMask(CategoryBankAccount)},
	{CategoryBirthDate, regexp.MustCompile(`(?i)\b(?:nascid[oa]\s+em|data\s+de\s+nascimento|nascimento)\s*[:=]?\s*\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4}`), keywordMask(CategoryBirthDate)},
	{CategoryAddress, regexp.MustCompile(`(?i)\b(?:rua|avenida|av\.|travessa|alameda|rodovia|estrada)\s+[^,\n.;]{3,60}`), keywordMask(CategoryAddress)},
	// Shape-masking an email would still match the email regex, so both
	// modes use a marker instead.
	{CategoryEmail, regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`), func(string) string { return "[email]" }},
	{CategoryPaymentCard, regexp.MustCompile(`\b\d{4}[ .\-]\d{4}[ .\-]\d{4}[ .\-]\d{4}\b`), shapeMask},
	{CategoryCNPJ, regexp.MustCompile(`\b\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2}\b`), shapeMask},
	{CategoryCPF, regexp.MustCompile(`\b\d{3}\.\d{3}\.\d{3}-\d{2}\b`), shapeMask},
	{CategoryPhone, regexp.MustCompile(`(?:\+55\s?)?(?:\(\d{2}\)\s?|\b\d{2}\s)9?\d{4}[-\s]?\d{4}\b`), shapeMask},
	{CategoryGPS, regexp.MustCompile(`-?\d{1,2}\.\d{3,8},\s*-?\d{1,3}\.\d{3,8}`), shapeMask},
	{CategoryPaymentCard, regexp.MustCompile(`\b\d{16}\b`), shapeMask},
	{CategoryCNPJ, regexp.MustCompile(`\b\d{14}\b`), shapeMask},
	{CategoryCPF, regexp.MustCompile(`\b\d{11}\b`), shapeMask},
	{CategoryPostalCode, regexp.MustCompile(`\b\d{5}-?\d{3}\b`), shapeMask},
	{CategoryPassport, regexp.MustCompile(`\b[A-Z]{2}\d{6}\b`), shapeMask},
	{CategoryToken, regexp.MustCompile(`\b[A-Za-z0-9_\-]{32,}\b`), shapeMask},
}

// Redact returns text with all recognized sensitive values replaced
// according to mode. Pure function; safe for concurrent use.
func Redact(text string, mode Mode) string {
	out := text
	for _, p := range patterns {
		if mode == ForModel {
			out = p.re.ReplaceAllStringFunc(out, p.model)
			continue
		}
		out = p.re.ReplaceAllString(out, "["+strings.ToUpper(string(p.category))+"]")
	}
	return out
}

// Detection reports which sensitive categories are present in a text.
type Detection struct {
	HasSensitive bool
	Categories   []Category
}

// Detect reports the categories that would trigger redaction, without
// redacting. Used for auditing.
func Detect(text string) Detection {
	seen := make(map[Category]bool)
	var d Detection
	for _, p := range patterns {
		if seen[p.category] {
			continue
		}
		if p.re.MatchString(text) {
			seen[p.category] = true
			d.Categories = append(d.Categories, p.category)
		}
	}
	d.HasSensitive = len(d.Categories) > 0
	return d
}
