package search

import "testing"

func TestDetectCodes(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"CSCI0320", []string{"CSCI0320"}},
		{"what is csci 0320 about", []string{"CSCI0320"}},
		{"compare CSCI 1420 and APMA1690", []string{"CSCI1420", "APMA1690"}},
		{"ENGN0030L lab", []string{"ENGN0030L"}},
		{"csci0320 or CSCI 0320", []string{"CSCI0320"}},
		{"neural networks", nil},
		{"CS 12 intro", nil},
		{"ABCDEFG1234", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := DetectCodes(tt.query)
			if len(got) != len(tt.want) {
				t.Fatalf("DetectCodes(%q) = %v, want %v", tt.query, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("DetectCodes(%q)[%d] = %s, want %s", tt.query, i, got[i], tt.want[i])
				}
			}
		})
	}
}
