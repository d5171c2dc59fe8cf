package models

import (
	"errors"
	"testing"
)

func TestCourse_IndexedText(t *testing.T) {
	tests := []struct {
		name   string
		course Course
		want   string
	}{
		{"all fields", Course{Title: "Algorithms", Description: "Graphs and trees.", Department: "Computer Science"}, "Algorithms\nGraphs and trees.\nComputer Science"},
		{"missing description", Course{Title: "Ethics", Department: "Philosophy"}, "Ethics\nPhilosophy"},
		{"only department", Course{Department: "Music"}, "Music"},
		{"empty", Course{}, ""},
		{"ignores other fields", Course{Title: "X", Instructor: "Prof. Y", MeetingTimes: "MWF 9:00-10:00"}, "X"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.course.IndexedText(); got != tt.want {
				t.Errorf("IndexedText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeCode(t *testing.T) {
	tests := map[string]string{
		"CSCI0320":   "CSCI0320",
		"csci 0320":  "CSCI0320",
		" ENGN  0030": "ENGN0030",
		"":           "",
	}
	for in, want := range tests {
		if got := NormalizeCode(in); got != want {
			t.Errorf("NormalizeCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseSource(t *testing.T) {
	tests := []struct {
		in      string
		want    Source
		wantErr bool
	}{
		{"primary", SourcePrimary, false},
		{"Bulletin", SourcePrimary, false},
		{"CAB", SourceSecondary, false},
		{"CAB+Bulletin", SourceMerged, false},
		{"merged", SourceMerged, false},
		{"registrar", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSource(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSource(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseSource(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCorpus_Texts(t *testing.T) {
	c := &Corpus{Courses: []Course{{Title: "A"}, {Title: "B", Department: "D"}}}
	texts := c.Texts()
	if len(texts) != 2 || texts[0] != "A" || texts[1] != "B\nD" {
		t.Errorf("Texts() = %q", texts)
	}
	var nilCorpus *Corpus
	if nilCorpus.Len() != 0 {
		t.Error("nil corpus should have length 0")
	}
}

func TestTypedErrors_Unwrap(t *testing.T) {
	if !errors.Is(&DimensionMismatchError{Got: 3, Want: 4}, ErrDimensionMismatch) {
		t.Error("DimensionMismatchError should match ErrDimensionMismatch")
	}
	if !errors.Is(&StaleArtifactError{Artifact: "vectors.bin", Reason: "fingerprint"}, ErrStaleArtifact) {
		t.Error("StaleArtifactError should match ErrStaleArtifact")
	}
	if !errors.Is(&InvalidFilterError{Key: "deptartment"}, ErrInvalidFilter) {
		t.Error("InvalidFilterError should match ErrInvalidFilter")
	}
	cause := errors.New("boom")
	err := &EmbeddingError{Provider: "openai", Err: cause}
	if !errors.Is(err, ErrEmbedding) || !errors.Is(err, cause) {
		t.Error("EmbeddingError should match ErrEmbedding and its cause")
	}
}
