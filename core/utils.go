package core

import "strings"

// CleanString trims surrounding whitespace and optionally lowercases `s`.
// Every user-provided string field goes through this before validation.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}
