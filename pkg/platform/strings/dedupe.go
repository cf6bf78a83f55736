// Package strings holds slice helpers used when validating request input.
package strings

import (
	"slices"
	"strings"
)

// Normalize maps fn over values, drops entries fn reduces to "" and keeps the
// first occurrence of each result. Input order is preserved and values is
// never modified. A nil fn trims surrounding whitespace.
func Normalize(values []string, fn func(string) string) []string {
	if values == nil {
		return nil
	}
	if fn == nil {
		fn = strings.TrimSpace
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = fn(v); v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// DedupeAndTrim is Normalize with whitespace trimming. Comparison stays
// case-sensitive so redirect URIs that differ only by path case are distinct.
func DedupeAndTrim(values []string) []string {
	return Normalize(values, nil)
}
