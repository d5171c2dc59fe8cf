package corpus

import "github.com/hyperjump/kamoku/internal/models"

// Merge combines a primary and a secondary catalog keyed by normalized code.
// The primary record wins; its empty fields are filled from the secondary,
// and records present in both become SourceMerged. Output order is the
// primary order followed by secondary-only records in their order.
// Duplicate codes within one catalog are folded the same way.
func Merge(primary, secondary []models.Course) []models.Course {
	out := make([]models.Course, 0, len(primary)+len(secondary))
	pos := make(map[string]int, len(primary)+len(secondary))
	add := func(c models.Course, src models.Source) {
		c.Code = models.NormalizeCode(c.Code)
		if c.Source == "" {
			c.Source = src
		}
		if i, ok := pos[c.Code]; ok {
			out[i] = fillGaps(out[i], c)
			return
		}
		pos[c.Code] = len(out)
		out = append(out, c)
	}
	for _, c := range primary {
		add(c, models.SourcePrimary)
	}
	for _, c := range secondary {
		add(c, models.SourceSecondary)
	}
	return out
}

func fillGaps(dst, src models.Course) models.Course {
	fill := func(d *string, s string) {
		if *d == "" {
			*d = s
		}
	}
	fill(&dst.Title, src.Title)
	fill(&dst.Department, src.Department)
	fill(&dst.Description, src.Description)
	fill(&dst.Instructor, src.Instructor)
	fill(&dst.MeetingTimes, src.MeetingTimes)
	fill(&dst.Prerequisites, src.Prerequisites)
	if dst.Source != src.Source {
		dst.Source = models.SourceMerged
	}
	return dst
}
