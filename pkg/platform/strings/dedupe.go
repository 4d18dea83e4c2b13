// Package strings provides string list helpers shared by config loaders.
package strings

import (
	"strings"
)

// DedupeLower trims and lowercases each value, dropping blanks and repeats.
// Order of first occurrence is preserved. A nil or empty input yields nil so
// callers can tell "not configured" from "configured".
//
//	DedupeLower([]string{" SDN", "un", "sdn", ""}) // []string{"sdn", "un"}
func DedupeLower(values []string) []string {
	var result []string
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
