// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package match provides the fuzzy field predicate used by the constraint
// search strategy.
package match

import "strings"

// Matches reports whether query occurs as a substring of field after both
// are trimmed and case-folded. An empty query or empty field never matches.
func Matches(query, field string) bool {
	q := normalize(query)
	f := normalize(field)
	if q == "" || f == "" {
		return false
	}
	return strings.Contains(f, q)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
