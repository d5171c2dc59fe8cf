package search

import (
	"fmt"
	"sort"
)

// Fusion strategy names.
const (
	FusionRRF      = "rrf"
	FusionWeighted = "weighted"
)

// DefaultRRFConstant is the usual reciprocal rank fusion damping constant.
const DefaultRRFConstant = 60

// Hit is one entry of a single-index ranking.
type Hit struct {
	Index int
	Score float64
}

// Ranking is a list of hits sorted by score descending.
type Ranking []Hit

// Fused is a candidate after fusion. Scores and Ranks are aligned with the
// rankings passed to Fuse; Ranks[i] is 0 when the record was absent from
// ranking i.
type Fused struct {
	Index  int
	Score  float64
	Scores []float64
	Ranks  []int
	Pinned bool
}

// Fuser merges rankings into a single list sorted by fused score descending,
// ties by ascending record index.
type Fuser interface {
	Name() string
	Fuse(rankings ...Ranking) []Fused
	// Ceiling is the largest fused score any record can reach for these rankings.
	Ceiling(rankings ...Ranking) float64
}

// NewFuser returns the strategy called name.
func NewFuser(name string, rrfConstant float64, weights ...float64) (Fuser, error) {
	switch name {
	case FusionRRF, "":
		return NewRRF(rrfConstant), nil
	case FusionWeighted:
		return NewWeighted(weights...), nil
	default:
		return nil, fmt.Errorf("unknown fusion strategy: %s (supported: rrf, weighted)", name)
	}
}

// collect folds the rankings into one candidate per record, with per-list
// scores and 1-based ranks filled in.
func collect(rankings []Ranking) (map[int]*Fused, []int) {
	byIndex := make(map[int]*Fused)
	var order []int
	for li, list := range rankings {
		for r, h := range list {
			f, ok := byIndex[h.Index]
			if !ok {
				f = &Fused{Index: h.Index, Scores: make([]float64, len(rankings)), Ranks: make([]int, len(rankings))}
				byIndex[h.Index] = f
				order = append(order, h.Index)
			}
			if f.Ranks[li] == 0 {
				f.Ranks[li] = r + 1
				f.Scores[li] = h.Score
			}
		}
	}
	return byIndex, order
}

func sortFused(out []Fused) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Index < out[j].Index
	})
}

func finish(byIndex map[int]*Fused, order []int) []Fused {
	out := make([]Fused, 0, len(order))
	for _, idx := range order {
		out = append(out, *byIndex[idx])
	}
	sortFused(out)
	return out
}

// RRF is reciprocal rank fusion: score = Σ 1/(c + rank) over the rankings
// that contain the record.
type RRF struct {
	C float64
}

// NewRRF creates an RRF fuser. Non-positive c falls back to DefaultRRFConstant.
func NewRRF(c float64) *RRF {
	if c <= 0 {
		c = DefaultRRFConstant
	}
	return &RRF{C: c}
}

// Name returns "rrf".
func (f *RRF) Name() string { return FusionRRF }

// Fuse implements Fuser.
func (f *RRF) Fuse(rankings ...Ranking) []Fused {
	byIndex, order := collect(rankings)
	for _, c := range byIndex {
		for _, r := range c.Ranks {
			if r > 0 {
				c.Score += 1 / (f.C + float64(r))
			}
		}
	}
	return finish(byIndex, order)
}

// Ceiling is the score of a record ranked first everywhere.
func (f *RRF) Ceiling(rankings ...Ranking) float64 {
	var total float64
	for _, list := range rankings {
		if len(list) > 0 {
			total += 1 / (f.C + 1)
		}
	}
	return total
}

// Weighted is a convex combination of per-list min-max normalised scores.
// A list whose scores are all equal normalises to 1.0 for every member.
type Weighted struct {
	Weights []float64
}

// NewWeighted creates a weighted fuser. Missing weights default to 1.
func NewWeighted(weights ...float64) *Weighted {
	return &Weighted{Weights: weights}
}

// Name returns "weighted".
func (f *Weighted) Name() string { return FusionWeighted }

func (f *Weighted) weight(i int) float64 {
	if i < len(f.Weights) {
		return f.Weights[i]
	}
	return 1
}

// Fuse implements Fuser. Per-list scores in the result stay raw.
func (f *Weighted) Fuse(rankings ...Ranking) []Fused {
	byIndex, order := collect(rankings)
	for li, list := range rankings {
		if len(list) == 0 {
			continue
		}
		lo, hi := list[0].Score, list[0].Score
		for _, h := range list {
			lo = min(lo, h.Score)
			hi = max(hi, h.Score)
		}
		w := f.weight(li)
		for _, c := range byIndex {
			if c.Ranks[li] == 0 {
				continue
			}
			norm := 1.0
			if hi > lo {
				norm = (c.Scores[li] - lo) / (hi - lo)
			}
			c.Score += w * norm
		}
	}
	return finish(byIndex, order)
}

// Ceiling is the sum of the weights of the non-empty lists.
func (f *Weighted) Ceiling(rankings ...Ranking) float64 {
	var total float64
	for i, list := range rankings {
		if len(list) > 0 {
			total += max(f.weight(i), 0)
		}
	}
	return total
}

// Pin lifts the records in pinned above every other candidate by adding
// 2·ceiling to their fused score, then re-sorts. Pinned records missing from
// fused are appended with only the lift.
func Pin(fused []Fused, pinned []int, ceiling float64, lists int) []Fused {
	if len(pinned) == 0 {
		return fused
	}
	lift := 2 * ceiling
	if lift <= 0 {
		lift = 2
	}
	pos := make(map[int]int, len(fused))
	for i := range fused {
		pos[fused[i].Index] = i
	}
	for _, idx := range pinned {
		i, ok := pos[idx]
		if !ok {
			fused = append(fused, Fused{Index: idx, Scores: make([]float64, lists), Ranks: make([]int, lists)})
			i = len(fused) - 1
			pos[idx] = i
		}
		if fused[i].Pinned {
			continue
		}
		fused[i].Score += lift
		fused[i].Pinned = true
	}
	sortFused(fused)
	return fused
}
