package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/kamoku/internal/models"
)

func TestLoadBytes_JSON(t *testing.T) {
	data := []byte(`[
		{"course_code": "CSCI 0320", "title": "Software Engineering", "department": "Computer Science",
		 "description": "Design of large programs.", "meeting_times": "MWF 10:00-11:00", "source": "Bulletin"},
		{"code": "PHIL0990", "title": "Metaphysics", "department": "Philosophy", "instructor": null}
	]`)
	courses, err := LoadBytes(data, ".json", models.SourceSecondary)
	if err != nil {
		t.Fatal(err)
	}
	if len(courses) != 2 {
		t.Fatalf("got %d courses", len(courses))
	}
	if courses[0].Code != "CSCI0320" || courses[0].Source != models.SourcePrimary {
		t.Errorf("first = %+v", courses[0])
	}
	if courses[1].Source != models.SourceSecondary || courses[1].Instructor != "" {
		t.Errorf("second = %+v", courses[1])
	}
}

func TestLoadBytes_WrappedJSON(t *testing.T) {
	data := []byte(`{"courses": [{"code": "A1", "title": "One"}]}`)
	courses, err := LoadBytes(data, ".json", models.SourcePrimary)
	if err != nil {
		t.Fatal(err)
	}
	if len(courses) != 1 || courses[0].Title != "One" {
		t.Errorf("courses = %+v", courses)
	}
}

func TestLoadBytes_JSONLines(t *testing.T) {
	data := []byte("{\"code\":\"A1\",\"title\":\"One\"}\n\n{\"code\":\"B2\",\"title\":\"Two\",\"source\":\"CAB+Bulletin\"}\n")
	courses, err := LoadBytes(data, ".jsonl", models.SourcePrimary)
	if err != nil {
		t.Fatal(err)
	}
	if len(courses) != 2 || courses[1].Source != models.SourceMerged {
		t.Errorf("courses = %+v", courses)
	}
}

func TestLoadBytes_CSV(t *testing.T) {
	data := []byte("course_code,title,department,meeting_times\nCSCI1420,Machine Learning,Computer Science,\"TTh 13:00-14:30\"\n,,,\nMATH0100,Calculus\n")
	courses, err := LoadBytes(data, ".csv", models.SourcePrimary)
	if err != nil {
		t.Fatal(err)
	}
	if len(courses) != 2 {
		t.Fatalf("got %d courses, want 2 (blank row skipped)", len(courses))
	}
	if courses[0].MeetingTimes != "TTh 13:00-14:30" {
		t.Errorf("meeting times = %q", courses[0].MeetingTimes)
	}
	if courses[1].Department != "" {
		t.Errorf("short row should leave department empty, got %q", courses[1].Department)
	}
}

func TestLoad_Excel(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	_ = f.SetSheetRow(sheet, "A1", &[]any{"code", "title", "department", "source"})
	_ = f.SetSheetRow(sheet, "A2", &[]any{"ENGN0030", "Introduction to Engineering", "Engineering", "CAB"})
	path := filepath.Join(t.TempDir(), "courses.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	courses, err := Load(path, models.SourcePrimary)
	if err != nil {
		t.Fatal(err)
	}
	if len(courses) != 1 || courses[0].Code != "ENGN0030" || courses[0].Source != models.SourceSecondary {
		t.Errorf("courses = %+v", courses)
	}
}

func TestLoadBytes_Errors(t *testing.T) {
	if _, err := LoadBytes([]byte("x"), ".pdf", models.SourcePrimary); err == nil {
		t.Error("expected error for unsupported format")
	}
	if _, err := LoadBytes([]byte("{not json"), ".json", models.SourcePrimary); err == nil {
		t.Error("expected error for malformed json")
	}
	if _, err := LoadBytes([]byte(`[{"code":"A","source":"registrar"}]`), ".json", models.SourcePrimary); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "courses.json")
	in := []models.Course{{Code: "A1", Title: "One", Prerequisites: "None", Source: models.SourceMerged}}
	if err := Save(path, in); err != nil {
		t.Fatal(err)
	}
	out, err := Load(path, models.SourcePrimary)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0] != in[0] {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected only the corpus file, found %d entries", len(entries))
	}
}
