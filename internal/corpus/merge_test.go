package corpus

import (
	"testing"

	"github.com/hyperjump/kamoku/internal/models"
)

func TestMerge_PrefersPrimaryAndFillsGaps(t *testing.T) {
	bulletin := []models.Course{{
		Code:         "ENGN0010",
		Title:        "Introduction to Engineering",
		Department:   "Engineering",
		Description:  "Introduction to engineering design.",
		Instructor:   "Prof. Smith",
		MeetingTimes: "MWF 9:00-10:00",
		Source:       models.SourcePrimary,
	}}
	cab := []models.Course{
		{
			Code:          "ENGN 0010",
			Title:         "Introduction to Engineering",
			Department:    "Engineering",
			Description:   "Detailed engineering intro.",
			Prerequisites: "High School Math",
			Source:        models.SourceSecondary,
		},
		{Code: "MATH0100", Title: "Calculus", Source: models.SourceSecondary},
	}

	merged := Merge(bulletin, cab)
	if len(merged) != 2 {
		t.Fatalf("expected 2 merged records, got %d", len(merged))
	}
	engn := merged[0]
	if engn.Code != "ENGN0010" {
		t.Fatalf("first record = %s, want ENGN0010", engn.Code)
	}
	if engn.Source != models.SourceMerged {
		t.Errorf("source = %s, want merged", engn.Source)
	}
	if engn.MeetingTimes != "MWF 9:00-10:00" {
		t.Errorf("meeting times = %q, want primary value", engn.MeetingTimes)
	}
	if engn.Description != "Introduction to engineering design." {
		t.Errorf("description = %q, want primary value", engn.Description)
	}
	if engn.Prerequisites != "High School Math" {
		t.Errorf("prerequisites = %q, want secondary fill", engn.Prerequisites)
	}
	if merged[1].Code != "MATH0100" || merged[1].Source != models.SourceSecondary {
		t.Errorf("secondary-only record = %+v", merged[1])
	}
}

func TestMerge_DefaultsSources(t *testing.T) {
	merged := Merge([]models.Course{{Code: "A"}}, []models.Course{{Code: "B"}})
	if merged[0].Source != models.SourcePrimary || merged[1].Source != models.SourceSecondary {
		t.Errorf("sources = %s, %s", merged[0].Source, merged[1].Source)
	}
	if err := Validate(merged); err != nil {
		t.Errorf("merged output should validate: %v", err)
	}
}
