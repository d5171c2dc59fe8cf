package search

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hyperjump/kamoku/internal/keyword"
	"github.com/hyperjump/kamoku/internal/models"
)

// Filter keys accepted by ParseFilters.
const (
	FilterDepartment   = "department"
	FilterSource       = "source"
	FilterMeetingDay   = "meeting_day"
	FilterMeetingStart = "meeting_start"
)

var filterKeys = []string{FilterDepartment, FilterSource, FilterMeetingDay, FilterMeetingStart}

// Filter policies.
const (
	PolicyAfterFusion  = "after_fusion"
	PolicyBeforeFusion = "before_fusion"
)

// Filter is a conjunction of metadata predicates. A nil or zero Filter
// matches every record.
type Filter struct {
	Departments []string // lower-cased
	Sources     []models.Source
	Days        []models.Day
	StartFrom   *int // minutes after midnight, inclusive
	StartUntil  *int
}

// ParseFilters validates a raw filter map as decoded from JSON or YAML.
// Strings and string lists are accepted for the list-valued predicates.
func ParseFilters(raw map[string]any) (*Filter, error) {
	f := &Filter{}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		val := raw[key]
		switch key {
		case FilterDepartment:
			vals, err := stringList(key, val)
			if err != nil {
				return nil, err
			}
			for _, v := range vals {
				f.Departments = append(f.Departments, strings.ToLower(strings.TrimSpace(v)))
			}
		case FilterSource:
			vals, err := stringList(key, val)
			if err != nil {
				return nil, err
			}
			for _, v := range vals {
				src, err := models.ParseSource(v)
				if err != nil {
					return nil, &models.InvalidFilterError{Key: key, Reason: err.Error()}
				}
				f.Sources = append(f.Sources, src)
			}
		case FilterMeetingDay:
			vals, err := stringList(key, val)
			if err != nil {
				return nil, err
			}
			for _, v := range vals {
				d, err := models.ParseDay(v)
				if err != nil {
					return nil, &models.InvalidFilterError{Key: key, Reason: err.Error()}
				}
				f.Days = append(f.Days, d)
			}
		case FilterMeetingStart:
			if err := f.parseStartRange(val); err != nil {
				return nil, err
			}
		default:
			reason := "unknown filter key"
			if s, ok := keyword.Closest(key, filterKeys, 2); ok {
				reason = fmt.Sprintf("unknown filter key, did you mean %q?", s)
			}
			return nil, &models.InvalidFilterError{Key: key, Reason: reason}
		}
	}
	return f, nil
}

func stringList(key string, val any) ([]string, error) {
	var out []string
	switch v := val.(type) {
	case string:
		out = []string{v}
	case []string:
		out = v
	case []any:
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, &models.InvalidFilterError{Key: key, Reason: fmt.Sprintf("list values must be strings, got %T", e)}
			}
			out = append(out, s)
		}
	default:
		return nil, &models.InvalidFilterError{Key: key, Reason: fmt.Sprintf("expected a string or a list of strings, got %T", val)}
	}
	if len(out) == 0 {
		return nil, &models.InvalidFilterError{Key: key, Reason: "empty list"}
	}
	return out, nil
}

func (f *Filter) parseStartRange(val any) error {
	var bounds map[string]any
	switch v := val.(type) {
	case map[string]any:
		bounds = v
	case map[string]string:
		bounds = make(map[string]any, len(v))
		for k, s := range v {
			bounds[k] = s
		}
	default:
		return &models.InvalidFilterError{Key: FilterMeetingStart, Reason: `expected an object like {"gte": "09:00", "lte": "12:00"}`}
	}
	if len(bounds) == 0 {
		return &models.InvalidFilterError{Key: FilterMeetingStart, Reason: "no bounds given"}
	}
	for k, v := range bounds {
		s, ok := v.(string)
		if !ok {
			return &models.InvalidFilterError{Key: FilterMeetingStart, Reason: fmt.Sprintf("%s must be a HH:MM string", k)}
		}
		minutes, err := models.ParseClock(s)
		if err != nil {
			return &models.InvalidFilterError{Key: FilterMeetingStart, Reason: err.Error()}
		}
		switch k {
		case "gte":
			f.StartFrom = &minutes
		case "lte":
			f.StartUntil = &minutes
		default:
			return &models.InvalidFilterError{Key: FilterMeetingStart, Reason: fmt.Sprintf("unknown bound %q (use gte, lte)", k)}
		}
	}
	if f.StartFrom != nil && f.StartUntil != nil && *f.StartFrom > *f.StartUntil {
		return &models.InvalidFilterError{Key: FilterMeetingStart, Reason: "gte is after lte"}
	}
	return nil
}

// Empty reports whether the filter matches everything.
func (f *Filter) Empty() bool {
	return f == nil || (len(f.Departments) == 0 && len(f.Sources) == 0 && len(f.Days) == 0 &&
		f.StartFrom == nil && f.StartUntil == nil)
}

// Match reports whether c satisfies every predicate.
func (f *Filter) Match(c *models.Course) bool {
	if f.Empty() {
		return true
	}
	if len(f.Departments) > 0 && !containsFold(f.Departments, c.Department) {
		return false
	}
	if len(f.Sources) > 0 && !contains(f.Sources, c.Source) {
		return false
	}
	if len(f.Days) == 0 && f.StartFrom == nil && f.StartUntil == nil {
		return true
	}
	// Day and start bounds must hold for the same slot.
	return anySlot(c.Slots(), func(s models.MeetingSlot) bool {
		return f.meetsOnAny(s) && f.startsInRange(s)
	})
}

func (f *Filter) meetsOnAny(s models.MeetingSlot) bool {
	if len(f.Days) == 0 {
		return true
	}
	for _, d := range f.Days {
		if s.MeetsOn(d) {
			return true
		}
	}
	return false
}

func (f *Filter) startsInRange(s models.MeetingSlot) bool {
	if f.StartFrom != nil && s.Start < *f.StartFrom {
		return false
	}
	if f.StartUntil != nil && s.Start > *f.StartUntil {
		return false
	}
	return true
}

func anySlot(slots []models.MeetingSlot, pred func(models.MeetingSlot) bool) bool {
	for _, s := range slots {
		if pred(s) {
			return true
		}
	}
	return false
}

func containsFold(lowered []string, s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, v := range lowered {
		if v == s {
			return true
		}
	}
	return false
}

func contains[T comparable](vals []T, v T) bool {
	for _, x := range vals {
		if x == v {
			return true
		}
	}
	return false
}

// Apply keeps the candidates whose record matches f, preserving order.
func Apply[T any](candidates []T, f *Filter, course func(T) *models.Course) []T {
	if f.Empty() {
		return candidates
	}
	out := make([]T, 0, len(candidates))
	for _, c := range candidates {
		if f.Match(course(c)) {
			out = append(out, c)
		}
	}
	return out
}
