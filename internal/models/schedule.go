package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Day is a weekday token as written in meeting times.
type Day string

const (
	Monday    Day = "M"
	Tuesday   Day = "T"
	Wednesday Day = "W"
	Thursday  Day = "Th"
	Friday    Day = "F"
	Saturday  Day = "Sa"
	Sunday    Day = "Su"
)

var dayAliases = map[string]Day{
	"m": Monday, "mon": Monday, "monday": Monday,
	"t": Tuesday, "tu": Tuesday, "tue": Tuesday, "tues": Tuesday, "tuesday": Tuesday,
	"w": Wednesday, "wed": Wednesday, "wednesday": Wednesday,
	"th": Thursday, "r": Thursday, "thu": Thursday, "thur": Thursday, "thurs": Thursday, "thursday": Thursday,
	"f": Friday, "fri": Friday, "friday": Friday,
	"sa": Saturday, "sat": Saturday, "saturday": Saturday,
	"su": Sunday, "sun": Sunday, "sunday": Sunday,
}

// ParseDay resolves a single day token or name, case-insensitively.
func ParseDay(s string) (Day, error) {
	if d, ok := dayAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return d, nil
	}
	return "", fmt.Errorf("unknown day %q", s)
}

// MeetingSlot is one weekly meeting pattern. Times are minutes after midnight.
type MeetingSlot struct {
	Days  []Day `json:"days"`
	Start int   `json:"start"`
	End   int   `json:"end"`
}

// MeetsOn reports whether the slot meets on d.
func (s MeetingSlot) MeetsOn(d Day) bool {
	for _, sd := range s.Days {
		if sd == d {
			return true
		}
	}
	return false
}

// ParseMeetingTimes parses strings like "MWF 10:00-11:00" or
// "TTh 1:00-2:30pm; F 9:00-9:50". Segments that do not parse are skipped.
func ParseMeetingTimes(s string) []MeetingSlot {
	var slots []MeetingSlot
	for _, seg := range strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' || r == '\n' }) {
		fields := strings.Fields(seg)
		if len(fields) < 2 {
			continue
		}
		days, ok := parseDayRun(fields[0])
		if !ok {
			continue
		}
		start, end, ok := parseTimeRange(strings.Join(fields[1:], ""))
		if !ok {
			continue
		}
		slots = append(slots, MeetingSlot{Days: days, Start: start, End: end})
	}
	return slots
}

// parseDayRun splits a compact day run such as "MWF" or "TTh".
func parseDayRun(s string) ([]Day, bool) {
	var days []Day
	for i := 0; i < len(s); {
		if i+1 < len(s) {
			two := s[i : i+2]
			switch two {
			case "Th", "TH", "th":
				days = append(days, Thursday)
				i += 2
				continue
			case "Sa", "SA", "sa":
				days = append(days, Saturday)
				i += 2
				continue
			case "Su", "SU", "su":
				days = append(days, Sunday)
				i += 2
				continue
			}
		}
		d, ok := dayAliases[strings.ToLower(s[i:i+1])]
		if !ok {
			return nil, false
		}
		days = append(days, d)
		i++
	}
	return days, len(days) > 0
}

func parseTimeRange(s string) (int, int, bool) {
	lo, hi, found := strings.Cut(strings.ToLower(s), "-")
	if !found {
		return 0, 0, false
	}
	start, startMer, ok := parseClock(lo)
	if !ok {
		return 0, 0, false
	}
	end, endMer, ok := parseClock(hi)
	if !ok {
		return 0, 0, false
	}
	end = applyMeridiem(end, endMer)
	if startMer == "" && endMer == "pm" {
		// "1:00-2:30pm": the start shares the end's meridiem when that keeps it before the end.
		if pm := applyMeridiem(start, "pm"); pm <= end {
			start = pm
		}
	} else {
		start = applyMeridiem(start, startMer)
	}
	if end < start {
		return 0, 0, false
	}
	return start, end, true
}

// parseClock reads "H", "H:MM" or either with an am/pm suffix.
func parseClock(s string) (int, string, bool) {
	s = strings.TrimSpace(s)
	mer := ""
	for _, suffix := range []string{"am", "pm", "a", "p"} {
		if strings.HasSuffix(s, suffix) {
			mer = suffix[:1] + "m"
			s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
			break
		}
	}
	h, m, hasMin := strings.Cut(s, ":")
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 24 {
		return 0, "", false
	}
	minute := 0
	if hasMin {
		minute, err = strconv.Atoi(m)
		if err != nil || minute < 0 || minute > 59 {
			return 0, "", false
		}
	}
	return hour*60 + minute, mer, true
}

func applyMeridiem(minutes int, mer string) int {
	hour := minutes / 60
	switch {
	case mer == "pm" && hour < 12:
		return minutes + 12*60
	case mer == "am" && hour == 12:
		return minutes - 12*60
	}
	return minutes
}

// ParseClock parses an "HH:MM" (optionally am/pm) time of day into minutes after midnight.
func ParseClock(s string) (int, error) {
	minutes, mer, ok := parseClock(strings.ToLower(s))
	if !ok {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return applyMeridiem(minutes, mer), nil
}

// FormatClock renders minutes after midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
