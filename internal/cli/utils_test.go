package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/kamoku/internal/models"
	"github.com/hyperjump/kamoku/internal/search"
	"github.com/hyperjump/kamoku/internal/server"
)

func sampleResponse() *models.SearchResponse {
	return &models.SearchResponse{
		Query:           "csci 0320",
		QueryTime:       7,
		TotalCandidates: 3,
		DetectedCodes:   []string{"CSCI0320"},
		Fusion:          search.FusionRRF,
		FilterPolicy:    search.PolicyAfterFusion,
		Results: []*models.SearchResult{
			{RecordIndex: 0, Code: "CSCI0320", Title: "Introduction to Software Engineering", Department: "Computer Science",
				Source: models.SourcePrimary, Score: 0.05, Rank: 1, LexicalScore: 2.1, LexicalRank: 1, ExactCodeMatch: true},
			{RecordIndex: 1, Code: "CSCI1420", Title: "Machine Learning", Department: "Computer Science",
				Source: models.SourceMerged, Score: 0.016, Rank: 2, SemanticScore: 0.4, SemanticRank: 1, MeetingTimes: "TTh 1:00-2:20pm"},
		},
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    SearchOutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"TEXT", OutputText, false},
		{"compact", OutputCompact, false},
		{" json ", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestWriteSearchResults_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.SearchResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if len(decoded.Results) != 2 || decoded.Results[0].Code != "CSCI0320" || !decoded.Results[0].ExactCodeMatch {
		t.Errorf("decoded = %+v", decoded.Results)
	}
}

func TestWriteSearchResults_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Found 2 results in 7ms", "Detected codes: CSCI0320", "1. CSCI0320", "[exact code]", "#-", "TTh 1:00-2:20pm"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteSearchResults_Compact(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputCompact); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], "CSCI1420") {
		t.Errorf("compact output:\n%s", buf.String())
	}
}

func TestWriteSearchResults_DidYouMean(t *testing.T) {
	var buf bytes.Buffer
	resp := &models.SearchResponse{Query: "metaphisics", DidYouMean: "metaphysics"}
	if err := WriteSearchResults(&buf, resp, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Did you mean: metaphysics") {
		t.Errorf("missing suggestion:\n%s", buf.String())
	}
}

func TestWriteStatus(t *testing.T) {
	st := search.Stats{Ready: true, Records: 3, Fingerprint: "abc", BuildID: "b1", BuiltAt: time.Unix(0, 0).UTC(),
		Embedder: "mock", Dimensions: 8, SemanticIndex: "flat", LexicalIndex: "bm25", Fusion: "rrf", FilterPolicy: "after_fusion"}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, st, 2048, OutputText); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Records:      3", "flat + bm25", "2.0 KiB"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("status missing %q:\n%s", want, buf.String())
		}
	}

	buf.Reset()
	if err := WriteStatus(&buf, search.Stats{}, 0, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "not ready") {
		t.Errorf("status = %q", buf.String())
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		0:       "0 B",
		1023:    "1023 B",
		1024:    "1.0 KiB",
		1536:    "1.5 KiB",
		5 << 20: "5.0 MiB",
		3 << 30: "3.0 GiB",
	}
	for n, want := range tests {
		if got := FormatBytes(n); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestClient(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/search":
			var req server.SearchRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid filter \"departmnet\": unknown key"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(sampleResponse())
		case "/api/v1/status":
			_ = json.NewEncoder(w).Encode(server.StatusResponse{Stats: search.Stats{Ready: true, Records: 3}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	c := NewClient(ts.URL + "/")
	ctx := context.Background()
	resp, err := c.Search(ctx, server.SearchRequest{Query: "csci 0320", K: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 2 {
		t.Errorf("got %d results", len(resp.Results))
	}
	st, err := c.Status(ctx)
	if err != nil || st.Records != 3 {
		t.Errorf("status = %+v, %v", st, err)
	}
	_, err = c.Search(ctx, server.SearchRequest{})
	if err == nil || !strings.Contains(err.Error(), "400") || !strings.Contains(err.Error(), "departmnet") {
		t.Errorf("error = %v", err)
	}
	if _, err := c.Rebuild(ctx); err == nil {
		t.Error("expected error from missing route")
	}
}
