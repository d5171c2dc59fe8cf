package corpus

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/kamoku/internal/models"
)

// fieldAliases maps accepted column/field names to canonical course fields.
var fieldAliases = map[string]string{
	"code":          "code",
	"course_code":   "code",
	"coursecode":    "code",
	"course":        "code",
	"title":         "title",
	"name":          "title",
	"department":    "department",
	"dept":          "department",
	"description":   "description",
	"instructor":    "instructor",
	"instructors":   "instructor",
	"meeting_times": "meeting_times",
	"meeting_time":  "meeting_times",
	"schedule":      "meeting_times",
	"prerequisites": "prerequisites",
	"prereqs":       "prerequisites",
	"source":        "source",
}

// Load reads course records from path. The format is chosen by extension:
// .json (array of objects), .jsonl, .csv and .xlsx (header row + one row per course).
// Records without a source are tagged with defaultSource.
func Load(path string, defaultSource models.Source) ([]models.Course, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus file: %w", err)
	}
	courses, err := LoadBytes(content, strings.ToLower(filepath.Ext(path)), defaultSource)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filepath.Base(path), err)
	}
	return courses, nil
}

// LoadBytes parses content in the format named by ext (with leading dot).
func LoadBytes(content []byte, ext string, defaultSource models.Source) ([]models.Course, error) {
	var rows []map[string]string
	var err error
	switch ext {
	case ".json":
		rows, err = readJSON(content)
	case ".jsonl", ".ndjson":
		rows, err = readJSONLines(content)
	case ".csv":
		rows, err = readCSV(bytes.NewReader(content))
	case ".xlsx":
		rows, err = readExcel(content)
	default:
		return nil, fmt.Errorf("unsupported corpus format %q (supported: .json, .jsonl, .csv, .xlsx)", ext)
	}
	if err != nil {
		return nil, err
	}
	courses := make([]models.Course, 0, len(rows))
	for i, row := range rows {
		c, err := courseFromFields(row, defaultSource)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		courses = append(courses, c)
	}
	return courses, nil
}

func courseFromFields(fields map[string]string, defaultSource models.Source) (models.Course, error) {
	var c models.Course
	for k, v := range fields {
		v = strings.TrimSpace(v)
		switch fieldAliases[strings.ToLower(strings.TrimSpace(k))] {
		case "code":
			c.Code = models.NormalizeCode(v)
		case "title":
			c.Title = v
		case "department":
			c.Department = v
		case "description":
			c.Description = v
		case "instructor":
			c.Instructor = v
		case "meeting_times":
			c.MeetingTimes = v
		case "prerequisites":
			c.Prerequisites = v
		case "source":
			if v == "" {
				continue
			}
			src, err := models.ParseSource(v)
			if err != nil {
				return c, err
			}
			c.Source = src
		}
	}
	if c.Source == "" {
		c.Source = defaultSource
	}
	return c, nil
}

func readJSON(content []byte) ([]map[string]string, error) {
	var raw []map[string]any
	if err := json.Unmarshal(content, &raw); err != nil {
		// Accept {"courses": [...]} as written by the merge command.
		var wrapped struct {
			Courses []map[string]any `json:"courses"`
		}
		if err2 := json.Unmarshal(content, &wrapped); err2 != nil || wrapped.Courses == nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		raw = wrapped.Courses
	}
	rows := make([]map[string]string, len(raw))
	for i, obj := range raw {
		rows[i] = stringify(obj)
	}
	return rows, nil
}

func readJSONLines(content []byte) ([]map[string]string, error) {
	var rows []map[string]string
	sc := bufio.NewScanner(bytes.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(text), &obj); err != nil {
			return nil, fmt.Errorf("decode line %d: %w", line, err)
		}
		rows = append(rows, stringify(obj))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan jsonl: %w", err)
	}
	return rows, nil
}

func stringify(obj map[string]any) map[string]string {
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		switch t := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = t
		case []any:
			parts := make([]string, 0, len(t))
			for _, p := range t {
				parts = append(parts, fmt.Sprint(p))
			}
			out[k] = strings.Join(parts, "; ")
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	return out
}

func readCSV(r io.Reader) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return tableRows(records), nil
}

// tableRows turns a header row plus data rows into field maps. Short rows
// leave trailing fields empty; blank rows are skipped.
func tableRows(records [][]string) []map[string]string {
	if len(records) == 0 {
		return nil
	}
	header := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(rec) {
				row[name] = rec[i]
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
