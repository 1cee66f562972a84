package fetcher

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxStemBytes = 180

// SanitizeStem turns an upstream title into a file name stem that is safe on
// every common filesystem.
func SanitizeStem(title string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range title {
		switch {
		case r == utf8.RuneError, unicode.IsControl(r), strings.ContainsRune(`/\:*?"<>|`, r):
			if !lastUnderscore {
				b.WriteRune('_')
			}
			lastUnderscore = true
			continue
		case unicode.IsSpace(r):
			r = ' '
		}
		b.WriteRune(r)
		lastUnderscore = r == '_'
	}

	stem := strings.Trim(b.String(), " ._")
	if len(stem) > maxStemBytes {
		cut := maxStemBytes
		for cut > 0 && !utf8.RuneStart(stem[cut]) {
			cut--
		}
		stem = strings.TrimRight(stem[:cut], " ._")
	}
	if stem == "" {
		return "audio"
	}
	return stem
}
