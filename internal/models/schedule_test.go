package models

import (
	"reflect"
	"testing"
)

func TestParseMeetingTimes(t *testing.T) {
	tests := []struct {
		in   string
		want []MeetingSlot
	}{
		{"MWF 10:00-11:00", []MeetingSlot{{Days: []Day{Monday, Wednesday, Friday}, Start: 600, End: 660}}},
		{"TTh 13:00-14:30", []MeetingSlot{{Days: []Day{Tuesday, Thursday}, Start: 780, End: 870}}},
		{"TTh 1:00-2:30pm", []MeetingSlot{{Days: []Day{Tuesday, Thursday}, Start: 780, End: 870}}},
		{"MW 11:00-12:20pm", []MeetingSlot{{Days: []Day{Monday, Wednesday}, Start: 660, End: 740}}},
		{"M 9:00 - 9:50; F 10:00-10:50", []MeetingSlot{
			{Days: []Day{Monday}, Start: 540, End: 590},
			{Days: []Day{Friday}, Start: 600, End: 650},
		}},
		{"Sa 9-12", []MeetingSlot{{Days: []Day{Saturday}, Start: 540, End: 720}}},
		{"", nil},
		{"TBA", nil},
		{"XYZ 10:00-11:00", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseMeetingTimes(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseMeetingTimes(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDay(t *testing.T) {
	for in, want := range map[string]Day{"M": Monday, "th": Thursday, "R": Thursday, "Friday": Friday, "su": Sunday} {
		got, err := ParseDay(in)
		if err != nil || got != want {
			t.Errorf("ParseDay(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseDay("X"); err == nil {
		t.Error("expected error for unknown day")
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"09:00", 540, false},
		{"13:30", 810, false},
		{"1:30pm", 810, false},
		{"12:00am", 0, false},
		{"25:00", 0, true},
		{"noon", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseClock(%q) = %d, %v; want %d (err %v)", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
	if FormatClock(810) != "13:30" {
		t.Errorf("FormatClock(810) = %s", FormatClock(810))
	}
}
