package roster

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// normalizeText converts s to NFC so composed and decomposed forms of the same
// symbol compare equal.
func normalizeText(s string) string {
	return norm.NFC.String(s)
}

// collapseSpace trims s and folds every internal whitespace run to a single space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeHeader is applied to every header cell before matching.
func NormalizeHeader(s string) string {
	return collapseSpace(normalizeText(s))
}
