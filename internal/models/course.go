// Package models defines core data structures for course records, search results, and errors.
package models

import (
	"fmt"
	"strings"
	"unicode"
)

// Source identifies which catalog a course record came from.
type Source string

const (
	SourcePrimary   Source = "primary"
	SourceSecondary Source = "secondary"
	SourceMerged    Source = "merged"
)

// sourceAliases maps catalog names used by the acquisition layer to sources.
var sourceAliases = map[string]Source{
	"primary":      SourcePrimary,
	"bulletin":     SourcePrimary,
	"secondary":    SourceSecondary,
	"cab":          SourceSecondary,
	"merged":       SourceMerged,
	"cab+bulletin": SourceMerged,
	"bulletin+cab": SourceMerged,
}

// ParseSource resolves a source name or catalog alias, case-insensitively.
func ParseSource(s string) (Source, error) {
	if src, ok := sourceAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return src, nil
	}
	return "", fmt.Errorf("unknown source %q", s)
}

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourcePrimary, SourceSecondary, SourceMerged:
		return true
	}
	return false
}

// Course is a single catalog entry. Empty strings stand for missing values.
type Course struct {
	Code          string `json:"code" yaml:"code"`
	Title         string `json:"title" yaml:"title"`
	Department    string `json:"department" yaml:"department"`
	Description   string `json:"description" yaml:"description"`
	Instructor    string `json:"instructor" yaml:"instructor"`
	MeetingTimes  string `json:"meeting_times" yaml:"meeting_times"`
	Prerequisites string `json:"prerequisites" yaml:"prerequisites"`
	Source        Source `json:"source" yaml:"source"`
}

// IndexedText is the text both indexes see for a course: title, description
// and department, newline separated, with empty fields skipped.
func (c *Course) IndexedText() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{c.Title, c.Description, c.Department} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n")
}

// Slots parses MeetingTimes into structured meeting slots.
func (c *Course) Slots() []MeetingSlot {
	return ParseMeetingTimes(c.MeetingTimes)
}

// NormalizeCode upper-cases a course code and strips all whitespace,
// so "csci 0320" and "CSCI0320" refer to the same course.
func NormalizeCode(code string) string {
	var b strings.Builder
	b.Grow(len(code))
	for _, r := range code {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// Corpus is the ordered set of courses an index snapshot is built from.
// Position i is record index i in every index.
type Corpus struct {
	Courses     []Course `json:"courses"`
	Fingerprint string   `json:"fingerprint"`
}

// Len returns the number of records.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Courses)
}

// Texts returns the indexed text of every record in record order.
func (c *Corpus) Texts() []string {
	out := make([]string, c.Len())
	for i := range out {
		out[i] = c.Courses[i].IndexedText()
	}
	return out
}
