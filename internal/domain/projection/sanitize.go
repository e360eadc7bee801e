package projection

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Namespace prefixes every generated destination field name
const Namespace = "pim"

const (
	attributePrefix   = Namespace + "_attr_"
	translationPrefix = Namespace + "_translation_"
)

// SanitizeKey lowercases s, folds accented letters to their base letter and
// replaces every remaining character outside [a-z0-9] with an underscore.
// Runs of underscores are kept as-is so distinct inputs stay distinct.
func SanitizeKey(s string) string {
	// transform chains hold state; build one per call
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}

// hasAlphanumeric reports whether a sanitized key carries any information
func hasAlphanumeric(key string) bool {
	return strings.IndexFunc(key, func(r rune) bool {
		return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
	}) >= 0
}

// AttributeFieldName returns the destination field name for an attribute
// label, or false when the label sanitizes to nothing usable.
func AttributeFieldName(label string) (string, bool) {
	key := SanitizeKey(strings.TrimSpace(label))
	if !hasAlphanumeric(key) {
		return "", false
	}
	return attributePrefix + key, true
}

// TranslationFieldName returns the destination field name for one
// translatable attribute in one locale, e.g. pim_translation_nl_nl_description.
func TranslationFieldName(locale, suffix string) (string, bool) {
	key := SanitizeKey(strings.TrimSpace(locale))
	if !hasAlphanumeric(key) || suffix == "" {
		return "", false
	}
	return translationPrefix + key + "_" + suffix, true
}
