package search

import (
	"math"
	"sort"
	"testing"
)

const eps = 1e-12

func indexes(fused []Fused) []int {
	out := make([]int, len(fused))
	for i, f := range fused {
		out[i] = f.Index
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRRF_HandComputed(t *testing.T) {
	sem := Ranking{{3, 0.9}, {1, 0.8}, {4, 0.1}}
	lex := Ranking{{1, 7}, {0, 5}, {2, 2}, {4, 1}}
	fused := NewRRF(60).Fuse(sem, lex)

	want := map[int]float64{
		1: 1.0/62 + 1.0/61,
		4: 1.0/63 + 1.0/64,
		3: 1.0 / 61,
		0: 1.0 / 62,
		2: 1.0 / 63,
	}
	if got := indexes(fused); !equalInts(got, []int{1, 4, 3, 0, 2}) {
		t.Fatalf("order = %v", got)
	}
	for _, f := range fused {
		if math.Abs(f.Score-want[f.Index]) > eps {
			t.Errorf("record %d: score %v, want %v", f.Index, f.Score, want[f.Index])
		}
	}
	if f := fused[0]; f.Ranks[0] != 2 || f.Ranks[1] != 1 || f.Scores[1] != 7 {
		t.Errorf("per-list detail for record 1: %+v", f)
	}
	if f := fused[2]; f.Ranks[1] != 0 || f.Scores[1] != 0 {
		t.Errorf("record 3 absent from lexical should have rank 0: %+v", f)
	}
	if c := NewRRF(60).Ceiling(sem, lex); math.Abs(c-2.0/61) > eps {
		t.Errorf("ceiling = %v", c)
	}
	if c := NewRRF(60).Ceiling(sem, nil); math.Abs(c-1.0/61) > eps {
		t.Errorf("ceiling with one empty list = %v", c)
	}
}

func TestRRF_TopOfBothLists(t *testing.T) {
	sem := Ranking{{0, 0.95}, {1, 0.9}, {2, 0.7}, {3, 0.2}}
	lex := Ranking{{0, 9}, {4, 6}, {2, 3}}
	fused := NewRRF(60).Fuse(sem, lex)

	want := map[int]float64{
		0: 2.0 / 61,
		2: 2.0 / 63,
		1: 1.0 / 62,
		4: 1.0 / 62,
		3: 1.0 / 64,
	}
	if got := indexes(fused); !equalInts(got, []int{0, 2, 1, 4, 3}) {
		t.Fatalf("order = %v", got)
	}
	for _, f := range fused {
		if math.Abs(f.Score-want[f.Index]) > eps {
			t.Errorf("record %d: score %v, want %v", f.Index, f.Score, want[f.Index])
		}
	}
	top := fused[0]
	if top.Ranks[0] != 1 || top.Ranks[1] != 1 {
		t.Errorf("record 0 ranks = %v, want 1 in both lists", top.Ranks)
	}
	// First in a single list scores 1/61; first in both must beat it.
	if !(top.Score > 1.0/61) {
		t.Errorf("record first in both lists scored %v, not above 1/61", top.Score)
	}
	if c := NewRRF(60).Ceiling(sem, lex); math.Abs(c-top.Score) > eps {
		t.Errorf("ceiling = %v, want the top score %v", c, top.Score)
	}
}

func TestRRF_TiesByIndexAndDefaults(t *testing.T) {
	fused := NewRRF(0).Fuse(Ranking{{5, 1}}, Ranking{{2, 1}})
	if got := indexes(fused); !equalInts(got, []int{2, 5}) {
		t.Errorf("tie order = %v", got)
	}
	if NewRRF(-3).C != DefaultRRFConstant {
		t.Error("non-positive constant should fall back to the default")
	}
	if len(NewRRF(60).Fuse()) != 0 || len(NewRRF(60).Fuse(nil, nil)) != 0 {
		t.Error("no rankings should fuse to nothing")
	}
}

func TestWeighted_MinMax(t *testing.T) {
	sem := Ranking{{0, 0.9}, {1, 0.5}, {2, 0.1}}
	lex := Ranking{{1, 3}, {3, 3}}
	fused := NewWeighted(0.5, 0.5).Fuse(sem, lex)

	want := map[int]float64{1: 0.75, 0: 0.5, 3: 0.5, 2: 0}
	if got := indexes(fused); !equalInts(got, []int{1, 0, 3, 2}) {
		t.Fatalf("order = %v", got)
	}
	for _, f := range fused {
		if math.Abs(f.Score-want[f.Index]) > eps {
			t.Errorf("record %d: score %v, want %v", f.Index, f.Score, want[f.Index])
		}
	}
	if c := NewWeighted(0.5, 0.5).Ceiling(sem, lex); c != 1 {
		t.Errorf("ceiling = %v", c)
	}
}

func TestWeighted_SingleMemberList(t *testing.T) {
	fused := NewWeighted(0.3, 0.7).Fuse(Ranking{{4, 0.2}}, nil)
	if len(fused) != 1 || math.Abs(fused[0].Score-0.3) > eps {
		t.Errorf("fused = %+v", fused)
	}
}

func TestFusedSorted(t *testing.T) {
	sem := Ranking{{0, .9}, {1, .8}, {2, .7}, {3, .6}, {4, .5}, {5, .4}}
	lex := Ranking{{5, 9}, {3, 8}, {1, 7}, {6, 6}}
	for _, fuser := range []Fuser{NewRRF(60), NewWeighted(0.5, 0.5)} {
		fused := fuser.Fuse(sem, lex)
		resorted := append([]Fused(nil), fused...)
		sort.SliceStable(resorted, func(i, j int) bool {
			if resorted[i].Score != resorted[j].Score {
				return resorted[i].Score > resorted[j].Score
			}
			return resorted[i].Index < resorted[j].Index
		})
		if !equalInts(indexes(fused), indexes(resorted)) {
			t.Errorf("%s: not sorted: %v", fuser.Name(), indexes(fused))
		}
		if len(fused) != 7 {
			t.Errorf("%s: expected the union of 7 records, got %d", fuser.Name(), len(fused))
		}
	}
}

func TestPin(t *testing.T) {
	rrf := NewRRF(60)
	sem := Ranking{{0, .9}, {1, .8}, {2, .7}}
	lex := Ranking{{0, 3}, {1, 2}}
	fused := rrf.Fuse(sem, lex)
	ceiling := rrf.Ceiling(sem, lex)
	own := fused[2].Score

	pinned := Pin(fused, []int{2, 9}, ceiling, 2)
	if got := indexes(pinned); !equalInts(got, []int{2, 9, 0, 1}) {
		t.Fatalf("order = %v", got)
	}
	if math.Abs(pinned[0].Score-(2*ceiling+own)) > eps || !pinned[0].Pinned {
		t.Errorf("pinned record = %+v", pinned[0])
	}
	if math.Abs(pinned[1].Score-2*ceiling) > eps || pinned[1].Ranks[0] != 0 {
		t.Errorf("absent pinned record = %+v", pinned[1])
	}
	if pinned[2].Pinned {
		t.Error("unpinned record marked pinned")
	}

	again := Pin(pinned, []int{2}, ceiling, 2)
	if math.Abs(again[0].Score-(2*ceiling+own)) > eps {
		t.Error("pinning twice should not lift twice")
	}
}

func TestNewFuser(t *testing.T) {
	for name, want := range map[string]string{"": FusionRRF, "rrf": FusionRRF, "weighted": FusionWeighted} {
		f, err := NewFuser(name, 60, 0.5, 0.5)
		if err != nil {
			t.Fatal(err)
		}
		if f.Name() != want {
			t.Errorf("NewFuser(%q) = %s", name, f.Name())
		}
	}
	if _, err := NewFuser("borda", 60); err == nil {
		t.Error("expected error for unknown strategy")
	}
}
