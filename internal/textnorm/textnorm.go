// Package textnorm normalizes words the same way at build and query time:
// compatibility decomposition, removal of combining marks, lowercasing.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

func newTransformer() transform.Transformer {
	return transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// Normalize folds s to its search form: "Canción" -> "cancion".
func Normalize(s string) string {
	out, _, err := transform.String(newTransformer(), s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Words splits s into normalized words. Word runes are letters, digits and
// '_'; everything else separates words.
func Words(s string) []string {
	fields := strings.FieldsFunc(Normalize(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	return fields
}

// Unique normalizes words, splits them, and drops duplicates keeping the first
// occurrence order.
func Unique(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		for _, part := range Words(w) {
			if _, ok := seen[part]; ok {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}
	return out
}
