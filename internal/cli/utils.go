// Package cli renders search results and index status for the kamoku CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/kamoku/internal/models"
	"github.com/hyperjump/kamoku/internal/search"
	"github.com/hyperjump/kamoku/pkg/utils"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputCompact prints one line per result.
	OutputCompact SearchOutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (SearchOutputFormat, error) {
	switch f := SearchOutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", OutputText:
		return OutputText, nil
	case OutputCompact, OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text, compact, json)", s)
	}
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		for _, r := range response.Results {
			fmt.Fprintf(w, "%2d. %-10s %.4f  %s\n", r.Rank, r.Code, r.Score, r.Title)
		}
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nFound %d results in %dms (%d candidates, %s, %s)\n",
		len(response.Results), response.QueryTime, response.TotalCandidates, response.Fusion, response.FilterPolicy)
	if len(response.DetectedCodes) > 0 {
		fmt.Fprintf(w, "Detected codes: %s\n", strings.Join(response.DetectedCodes, ", "))
	}
	if response.DidYouMean != "" {
		fmt.Fprintf(w, "Did you mean: %s\n", response.DidYouMean)
	}
	fmt.Fprintln(w)
	for _, r := range response.Results {
		writeOneResult(w, r)
	}
}

func writeOneResult(w io.Writer, r *models.SearchResult) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	marker := ""
	if r.ExactCodeMatch {
		marker = " [exact code]"
	}
	fmt.Fprintf(w, "%d. %s  %s%s\n", r.Rank, r.Code, r.Title, marker)
	fmt.Fprintf(w, "   Score: %.4f (Semantic: %.4f %s, Lexical: %.4f %s)\n",
		r.Score, r.SemanticScore, rankLabel(r.SemanticRank), r.LexicalScore, rankLabel(r.LexicalRank))
	fmt.Fprintf(w, "   %s | %s", r.Department, r.Source)
	if r.MeetingTimes != "" {
		fmt.Fprintf(w, " | %s", r.MeetingTimes)
	}
	if r.Instructor != "" {
		fmt.Fprintf(w, " | %s", utils.Truncate(r.Instructor, 60))
	}
	fmt.Fprintln(w)
}

func rankLabel(rank int) string {
	if rank == 0 {
		return "#-"
	}
	return fmt.Sprintf("#%d", rank)
}

// WriteStatus writes index status in the given format.
func WriteStatus(w io.Writer, st search.Stats, diskUsage int64, format SearchOutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, struct {
			search.Stats
			DiskUsageBytes int64 `json:"disk_usage_bytes,omitempty"`
		}{st, diskUsage})
	}
	if !st.Ready {
		fmt.Fprintln(w, "Index: not ready")
		return nil
	}
	fmt.Fprintf(w, "Records:      %d\n", st.Records)
	fmt.Fprintf(w, "Fingerprint:  %s\n", st.Fingerprint)
	fmt.Fprintf(w, "Build:        %s (%s)\n", st.BuildID, st.BuiltAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Embedder:     %s (%d dims)\n", st.Embedder, st.Dimensions)
	fmt.Fprintf(w, "Indexes:      %s + %s\n", st.SemanticIndex, st.LexicalIndex)
	fmt.Fprintf(w, "Fusion:       %s, filters %s\n", st.Fusion, st.FilterPolicy)
	if diskUsage > 0 {
		fmt.Fprintf(w, "Disk usage:   %s\n", FormatBytes(diskUsage))
	}
	return nil
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
