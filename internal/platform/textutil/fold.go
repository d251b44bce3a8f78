package textutil

import (
	"strings"

	"golang.org/x/text/cases"
)

// SearchKey normalises a value for case-insensitive equality comparisons by
// trimming whitespace and applying Unicode case folding.
func SearchKey(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	return cases.Fold().String(trimmed)
}

// ContainsFold reports whether haystack contains needle under Unicode case folding.
// An empty needle matches everything.
func ContainsFold(haystack, needle string) bool {
	folded := SearchKey(needle)
	if folded == "" {
		return true
	}
	return strings.Contains(cases.Fold().String(haystack), folded)
}

// AnyContainsFold reports whether any of the values contains needle under case folding.
func AnyContainsFold(values []string, needle string) bool {
	for _, value := range values {
		if ContainsFold(value, needle) {
			return true
		}
	}
	return false
}
