package search

import (
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/kamoku/internal/models"
)

var filterCourses = []models.Course{
	{Code: "CSCI0320", Department: "Computer Science", MeetingTimes: "MWF 10:00-10:50", Source: models.SourcePrimary},
	{Code: "CSCI1420", Department: "Computer Science", MeetingTimes: "TTh 1:00-2:20pm", Source: models.SourceMerged},
	{Code: "PHIL0990", Department: "Philosophy", MeetingTimes: "W 3:00-5:30pm", Source: models.SourceSecondary},
	{Code: "APMA1690", Department: "Applied Mathematics", Source: models.SourcePrimary},
}

func matching(t *testing.T, raw map[string]any) []string {
	t.Helper()
	f, err := ParseFilters(raw)
	if err != nil {
		t.Fatalf("ParseFilters(%v): %v", raw, err)
	}
	var codes []string
	for i := range filterCourses {
		if f.Match(&filterCourses[i]) {
			codes = append(codes, filterCourses[i].Code)
		}
	}
	return codes
}

func TestFilter_Match(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want string
	}{
		{"none", nil, "CSCI0320,CSCI1420,PHIL0990,APMA1690"},
		{"department eq case-insensitive", map[string]any{"department": "computer science"}, "CSCI0320,CSCI1420"},
		{"department in", map[string]any{"department": []any{"Philosophy", "Applied Mathematics"}}, "PHIL0990,APMA1690"},
		{"source alias", map[string]any{"source": "Bulletin"}, "CSCI0320,APMA1690"},
		{"source list", map[string]any{"source": []string{"merged", "CAB"}}, "CSCI1420,PHIL0990"},
		{"meeting day", map[string]any{"meeting_day": "W"}, "CSCI0320,PHIL0990"},
		{"meeting day thursday alias", map[string]any{"meeting_day": []any{"thursday"}}, "CSCI1420"},
		{"start after noon", map[string]any{"meeting_start": map[string]any{"gte": "12:00"}}, "CSCI1420,PHIL0990"},
		{"start window", map[string]any{"meeting_start": map[string]any{"gte": "09:00", "lte": "13:00"}}, "CSCI0320,CSCI1420"},
		{"conjunction", map[string]any{"department": "Computer Science", "meeting_day": "T"}, "CSCI1420"},
		{"no match", map[string]any{"department": "History"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := strings.Join(matching(t, tt.raw), ","); got != tt.want {
				t.Errorf("matched %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFilter_DayAndStartShareSlot(t *testing.T) {
	c := &models.Course{Code: "ENGN0030", MeetingTimes: "M 9:00-10:00; F 14:00-15:00"}
	tests := []struct {
		name string
		raw  map[string]any
		want bool
	}{
		{"monday after 13:00", map[string]any{"meeting_day": "M", "meeting_start": map[string]any{"gte": "13:00"}}, false},
		{"friday after 13:00", map[string]any{"meeting_day": "F", "meeting_start": map[string]any{"gte": "13:00"}}, true},
		{"monday before 10:00", map[string]any{"meeting_day": "M", "meeting_start": map[string]any{"lte": "10:00"}}, true},
		{"either day after 13:00", map[string]any{"meeting_day": []any{"M", "F"}, "meeting_start": map[string]any{"gte": "13:00"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseFilters(tt.raw)
			if err != nil {
				t.Fatal(err)
			}
			if got := f.Match(c); got != tt.want {
				t.Errorf("Match = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseFilters_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		raw     map[string]any
		key     string
		suggest string
	}{
		{"typo", map[string]any{"departmnet": "X"}, "departmnet", `did you mean "department"`},
		{"typo day", map[string]any{"meeting_dya": "M"}, "meeting_dya", `did you mean "meeting_day"`},
		{"unknown", map[string]any{"instructor": "Smith"}, "instructor", ""},
		{"bad source", map[string]any{"source": "registrar"}, "source", ""},
		{"bad day", map[string]any{"meeting_day": "Funday"}, "meeting_day", ""},
		{"bad type", map[string]any{"department": 42}, "department", ""},
		{"bad list element", map[string]any{"department": []any{"A", 1}}, "department", ""},
		{"empty list", map[string]any{"department": []any{}}, "department", ""},
		{"bad clock", map[string]any{"meeting_start": map[string]any{"gte": "25:00"}}, "meeting_start", ""},
		{"bad bound", map[string]any{"meeting_start": map[string]any{"after": "10:00"}}, "meeting_start", ""},
		{"inverted range", map[string]any{"meeting_start": map[string]any{"gte": "14:00", "lte": "09:00"}}, "meeting_start", ""},
		{"not an object", map[string]any{"meeting_start": "10:00"}, "meeting_start", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFilters(tt.raw)
			if !errors.Is(err, models.ErrInvalidFilter) {
				t.Fatalf("err = %v, want ErrInvalidFilter", err)
			}
			var fe *models.InvalidFilterError
			if !errors.As(err, &fe) || fe.Key != tt.key {
				t.Errorf("error key = %+v, want %s", fe, tt.key)
			}
			if tt.suggest != "" && !strings.Contains(err.Error(), tt.suggest) {
				t.Errorf("error %q should suggest %s", err, tt.suggest)
			}
		})
	}
}

func TestApply_PreservesOrder(t *testing.T) {
	f, _ := ParseFilters(map[string]any{"department": "Computer Science"})
	hits := Ranking{{3, 9}, {1, 8}, {2, 7}, {0, 6}}
	got := Apply(hits, f, func(h Hit) *models.Course { return &filterCourses[h.Index] })
	if len(got) != 2 || got[0].Index != 1 || got[1].Index != 0 {
		t.Errorf("Apply = %+v", got)
	}
	if all := Apply(hits, nil, func(h Hit) *models.Course { return &filterCourses[h.Index] }); len(all) != 4 {
		t.Error("nil filter should keep everything")
	}
}
