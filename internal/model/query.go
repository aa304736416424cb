package model

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// QueryType distinguishes document-number queries from name queries.
type QueryType string

const (
	QueryTypeDocument QueryType = "document"
	QueryTypeName     QueryType = "name"
)

// Query is the immutable, normalized form of a dossier request. Built once
// per run by NewQuery and never mutated afterward.
type Query struct {
	Raw                  string    `json:"raw"`
	NormalizedIdentifier string    `json:"normalized_identifier"`
	Type                 QueryType `json:"type"`
}

// NewQuery normalizes the raw input and detects the query type. CPF (11
// digits) and CNPJ (14 digits) inputs become document queries keyed by the
// digit-only form; everything else is a name query keyed by the lowercased,
// accent-stripped form.
func NewQuery(raw string) Query {
	trimmed := strings.TrimSpace(raw)
	digits := digitsOnly(trimmed)

	if len(digits) == 11 || len(digits) == 14 {
		return Query{
			Raw:                  trimmed,
			NormalizedIdentifier: digits,
			Type:                 QueryTypeDocument,
		}
	}

	return Query{
		Raw:                  trimmed,
		NormalizedIdentifier: NormalizeForComparison(trimmed),
		Type:                 QueryTypeName,
	}
}

// stripAccents removes combining marks after NFD decomposition.
var stripAccents = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// NormalizeForComparison lowercases, strips accents, and collapses internal
// whitespace. Idempotent: normalizing an already-normalized string is a
// no-op.
func NormalizeForComparison(s string) string {
	out, _, err := transform.String(stripAccents, s)
	if err != nil {
		out = s
	}
	out = strings.ToLower(out)
	return strings.Join(strings.Fields(out), " ")
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NameParts splits a normalized name into tokens. Used for partial
// first+last matching by the classifier and the identity estimator.
func NameParts(normalized string) []string {
	return strings.Fields(normalized)
}
