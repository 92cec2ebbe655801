package doctree

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Anchor turns heading text into a fragment identifier. The text is
// NFC-normalised so that composed and decomposed spellings of the same
// heading produce the same anchor; runs of whitespace become a single
// underscore. Operator headings such as "infix +" keep their symbols.
func Anchor(text string) string {
	text = norm.NFC.String(strings.TrimSpace(text))
	var sb strings.Builder
	space := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && sb.Len() > 0 {
			sb.WriteByte('_')
		}
		space = false
		sb.WriteRune(r)
	}
	return sb.String()
}
