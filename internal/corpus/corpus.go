// Package corpus loads, merges, validates and fingerprints course catalogs.
package corpus

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/hyperjump/kamoku/internal/models"
)

// New validates courses and returns a fingerprinted corpus. Codes are
// normalized in place on a copy; the input slice is not modified.
func New(courses []models.Course) (*models.Corpus, error) {
	out := make([]models.Course, len(courses))
	copy(out, courses)
	for i := range out {
		out[i].Code = models.NormalizeCode(out[i].Code)
	}
	if err := Validate(out); err != nil {
		return nil, err
	}
	return &models.Corpus{Courses: out, Fingerprint: Fingerprint(out)}, nil
}

// Validate rejects empty codes, duplicate codes and unknown sources.
func Validate(courses []models.Course) error {
	seen := make(map[string]int, len(courses))
	for i, c := range courses {
		if c.Code == "" {
			return fmt.Errorf("%w: record %d has an empty course code", models.ErrInvalidCorpus, i)
		}
		if j, dup := seen[c.Code]; dup {
			return fmt.Errorf("%w: course code %s appears at records %d and %d", models.ErrInvalidCorpus, c.Code, j, i)
		}
		seen[c.Code] = i
		if !c.Source.Valid() {
			return fmt.Errorf("%w: record %d (%s) has unknown source %q", models.ErrInvalidCorpus, i, c.Code, c.Source)
		}
	}
	return nil
}

// Fingerprint hashes every field of every record, in order, with xxhash64.
// Fields are length-prefixed so adjacent values cannot collide by shifting.
func Fingerprint(courses []models.Course) string {
	h := xxhash.New()
	var lenBuf [8]byte
	write := func(s string) {
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(s)))
		_, _ = h.Write(lenBuf[:])
		_, _ = h.WriteString(s)
	}
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(courses)))
	_, _ = h.Write(lenBuf[:])
	for i := range courses {
		c := &courses[i]
		write(c.Code)
		write(c.Title)
		write(c.Department)
		write(c.Description)
		write(c.Instructor)
		write(c.MeetingTimes)
		write(c.Prerequisites)
		write(string(c.Source))
	}
	var sum [8]byte
	binary.BigEndian.PutUint64(sum[:], h.Sum64())
	return hex.EncodeToString(sum[:])
}

// Index maps normalized course codes to record indexes.
func Index(c *models.Corpus) map[string]int {
	idx := make(map[string]int, c.Len())
	for i := range c.Courses {
		idx[c.Courses[i].Code] = i
	}
	return idx
}
