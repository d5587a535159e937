package scan

import "strings"

const maskRune = "*"

// Mask replaces all but the last keepLast characters of a value with '*';
// values at or below keepLast characters are masked entirely. Re-masking an
// already masked value is a no-op, which callers rely on when findings pass
// through more than one redaction layer.
func Mask(value string, keepLast int) string {
	if keepLast < 0 {
		keepLast = 0
	}
	runes := []rune(value)
	if len(runes) <= keepLast {
		return strings.Repeat(maskRune, len(runes))
	}
	return strings.Repeat(maskRune, len(runes)-keepLast) + string(runes[len(runes)-keepLast:])
}
