package keyword

import (
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/hyperjump/kamoku/pkg/utils"
)

// Suggestion is a vocabulary term close to a query term.
type Suggestion struct {
	Term      string
	Distance  int
	Frequency int
}

// SpellCheckResult reports query terms missing from the vocabulary.
type SpellCheckResult struct {
	CorrectedQuery  string
	Suggestions     []Suggestion
	MisspelledTerms []string
}

// HasCorrections reports whether any term was replaced.
func (r *SpellCheckResult) HasCorrections() bool {
	return len(r.MisspelledTerms) > 0
}

// SpellChecker suggests vocabulary terms for query terms the lexical index has never seen.
type SpellChecker struct {
	dictionary     TermDictionary
	maxDistance    int
	minTermLen     int
	maxSuggestions int

	once    sync.Once
	loadErr error
	terms   []string
	termSet map[string]struct{}
}

// SpellCheckerOption is a functional option for configuring SpellChecker.
type SpellCheckerOption func(*SpellChecker)

// WithMaxDistance sets the maximum edit distance for suggestions.
func WithMaxDistance(d int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if d > 0 {
			s.maxDistance = d
		}
	}
}

// WithMinTermLength skips terms shorter than n runes; short terms have too many neighbours.
func WithMinTermLength(n int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if n > 0 {
			s.minTermLen = n
		}
	}
}

// WithMaxSuggestions sets the maximum number of suggestions per term.
func WithMaxSuggestions(n int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if n > 0 {
			s.maxSuggestions = n
		}
	}
}

// NewSpellChecker creates a SpellChecker over dict. The vocabulary is read on
// first use; the index behind dict is immutable, so it is never refreshed.
func NewSpellChecker(dict TermDictionary, opts ...SpellCheckerOption) *SpellChecker {
	s := &SpellChecker{
		dictionary:     dict,
		maxDistance:    2,
		minTermLen:     4,
		maxSuggestions: 3,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SpellChecker) load() error {
	s.once.Do(func() {
		terms, err := s.dictionary.GetAllTerms()
		if err != nil {
			s.loadErr = err
			return
		}
		s.terms = terms
		s.termSet = make(map[string]struct{}, len(terms))
		for _, t := range terms {
			s.termSet[t] = struct{}{}
		}
	})
	return s.loadErr
}

// Check replaces each unknown query term with its best suggestion.
func (s *SpellChecker) Check(query string) (*SpellCheckResult, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	tokens := utils.Tokenize(query)
	result := &SpellCheckResult{}
	corrected := make([]string, 0, len(tokens))
	for _, term := range tokens {
		if _, known := s.termSet[term]; known {
			corrected = append(corrected, term)
			continue
		}
		suggestions := s.Suggest(term)
		if len(suggestions) == 0 {
			corrected = append(corrected, term)
			continue
		}
		result.MisspelledTerms = append(result.MisspelledTerms, term)
		result.Suggestions = append(result.Suggestions, suggestions...)
		corrected = append(corrected, suggestions[0].Term)
	}
	result.CorrectedQuery = strings.Join(corrected, " ")
	return result, nil
}

// Suggest returns vocabulary terms within the edit distance of term, closest
// first, then most frequent, then alphabetical.
func (s *SpellChecker) Suggest(term string) []Suggestion {
	if err := s.load(); err != nil {
		return nil
	}
	termLen := utf8.RuneCountInString(term)
	if termLen < s.minTermLen {
		return nil
	}
	var out []Suggestion
	for _, cand := range s.terms {
		if cand == term {
			continue
		}
		if diff := utf8.RuneCountInString(cand) - termLen; diff > s.maxDistance || -diff > s.maxDistance {
			continue
		}
		d := DamerauLevenshteinDistance(term, cand)
		if d > s.maxDistance {
			continue
		}
		freq, err := s.dictionary.GetTermFrequency(cand)
		if err != nil || freq == 0 {
			continue
		}
		out = append(out, Suggestion{Term: cand, Distance: d, Frequency: freq})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].Term < out[j].Term
	})
	if len(out) > s.maxSuggestions {
		out = out[:s.maxSuggestions]
	}
	return out
}
