package search

import (
	"regexp"

	"github.com/hyperjump/kamoku/internal/models"
)

var courseCodePattern = regexp.MustCompile(`\b[A-Za-z]{2,5}\s?\d{3,4}[A-Za-z]?\b`)

// DetectCodes returns the course codes mentioned in query, normalised and in
// order of first appearance.
func DetectCodes(query string) []string {
	matches := courseCodePattern.FindAllString(query, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		code := models.NormalizeCode(m)
		if !seen[code] {
			seen[code] = true
			out = append(out, code)
		}
	}
	return out
}
