package observability

import (
	"strings"
	"unicode"
)

const (
	routeLimit   = 180
	methodLimit  = 10
	profileLimit = 26
)

// clip removes control runes so a request field cannot forge log lines, then
// cuts the result to at most limit runes.
func clip(value string, limit int) string {
	var b strings.Builder
	n := 0
	for _, r := range value {
		if n == limit {
			break
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// SanitizeRoute prepares a request path for logs and span attributes.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return clip(route, routeLimit)
}

// SanitizeMethod prepares an HTTP method for logs.
func SanitizeMethod(method string) string {
	return clip(method, methodLimit)
}

// SanitizeProfile keeps only the alphanumeric runes of a profile id, up to the
// length of a ULID.
func SanitizeProfile(profile string) string {
	kept := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return -1
	}, profile)
	return clip(kept, profileLimit)
}
