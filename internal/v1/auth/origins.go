package auth

import "strings"

// ParseAllowedOrigins splits a comma-separated origins value, trimming
// whitespace and dropping empty entries. Falls back to the defaults when the
// value is empty.
func ParseAllowedOrigins(value string, defaults []string) []string {
	if value == "" {
		return defaults
	}

	var origins []string
	for _, origin := range strings.Split(value, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return defaults
	}
	return origins
}

// OriginAllowed reports whether origin is in the allow list. A "*" entry
// allows everything.
func OriginAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}
