package equipment

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/width"
)

// NormalizeSerial folds full-width characters to their narrow form, upper-cases and
// collapses inner whitespace, so "ｓｎ－００１ " and "SN-001" collide on the unique index.
func NormalizeSerial(s string) string {
	s = width.Fold.String(s)
	s = cases.Upper(language.Und).String(s) // Caser is stateful, not shared
	return strings.Join(strings.Fields(s), " ")
}
