package observability

import (
	"strings"
	"unicode"
)

const maxFieldRunes = 256

// logSafe strips control characters that could forge log lines and bounds the
// value to at most max runes.
func logSafe(value string, max int) string {
	if max <= 0 {
		max = maxFieldRunes
	}
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
	runes := []rune(cleaned)
	if len(runes) > max {
		return string(runes[:max])
	}
	return cleaned
}

// SanitizeRoute bounds a route pattern before it reaches logs or spans.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return logSafe(route, 200)
}

// SanitizeMethod bounds an HTTP method string.
func SanitizeMethod(method string) string {
	return logSafe(method, 16)
}

// SanitizeOwnerID bounds a cart owner identifier so arbitrary client-chosen
// ids cannot flood log fields.
func SanitizeOwnerID(id string) string {
	return logSafe(id, 64)
}
