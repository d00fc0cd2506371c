// Package identity canonicalizes the heterogeneous peer references that
// arrive from the REST API and the chat stream (display name, username,
// mobile number, numeric id) into one stable string key. Every other package
// indexes state by the key this package produces.
package identity

import (
	"strconv"
	"strings"
)

// Normalize trims the candidate and returns it unchanged, or "" when the
// candidate is empty or whitespace-only. Case is preserved: keys are display
// identity and every lookup elsewhere is an exact match.
func Normalize(candidate string) string {
	return strings.TrimSpace(candidate)
}

// Derive returns the first candidate that normalizes to a non-empty key,
// trying them in order. Returns "" when none qualifies.
func Derive(candidates ...string) string {
	for _, c := range candidates {
		if k := Normalize(c); k != "" {
			return k
		}
	}
	return ""
}

// FromRecord derives a key from a user-shaped record using the fixed
// priority name > username > mobile > numeric id. A zero id never yields
// a key — "0" is not a usable identity.
func FromRecord(name, username, mobile string, id int64) string {
	if k := Derive(name, username, mobile); k != "" {
		return k
	}
	if id != 0 {
		return strconv.FormatInt(id, 10)
	}
	return ""
}
