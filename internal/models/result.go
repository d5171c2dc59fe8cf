package models

// SearchResult is a single ranked course.
type SearchResult struct {
	RecordIndex    int     `json:"record_index"`
	Code           string  `json:"code"`
	Title          string  `json:"title"`
	Department     string  `json:"department"`
	Instructor     string  `json:"instructor,omitempty"`
	MeetingTimes   string  `json:"meeting_times,omitempty"`
	Source         Source  `json:"source"`
	Score          float64 `json:"score"`
	Rank           int     `json:"rank"`
	SemanticScore  float64 `json:"semantic_score"`
	LexicalScore   float64 `json:"lexical_score"`
	SemanticRank   int     `json:"semantic_rank,omitempty"` // 0 when absent from the semantic list
	LexicalRank    int     `json:"lexical_rank,omitempty"`  // 0 when absent from the lexical list
	ExactCodeMatch bool    `json:"exact_code_match,omitempty"`
}

// SearchResponse is the response for a search request. Results are sorted by Score descending.
type SearchResponse struct {
	Query           string          `json:"query"`
	Results         []*SearchResult `json:"results"`
	TotalCandidates int             `json:"total_candidates"`
	DetectedCodes   []string        `json:"detected_codes,omitempty"`
	DidYouMean      string          `json:"did_you_mean,omitempty"`
	QueryTime       int64           `json:"query_time_ms"`
	Fusion          string          `json:"fusion"`
	FilterPolicy    string          `json:"filter_policy"`
}
