package service

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Slugify builds a URL slug from a name: accents are stripped, "@" becomes
// "at", other punctuation is dropped, and runs of spaces, dashes or
// underscores collapse into a single dash. "Men's T-Shirt" becomes "mens-t-shirt".
func Slugify(s string) string {
	s = strings.ReplaceAll(s, "@", " at ")

	var b strings.Builder
	pendingDash := false
	for _, r := range norm.NFKD.String(s) {
		switch {
		case unicode.Is(unicode.Mn, r):
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r) || r == '-' || r == '_':
			pendingDash = true
		}
	}
	return b.String()
}
