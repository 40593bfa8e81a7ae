package search

import (
	"sort"
)

// DefaultRRFK is the standard reciprocal-rank-fusion constant.
const DefaultRRFK = 60

// Fuse combines multiple ranked lists with reciprocal rank fusion:
// rrf(i) = sum over lists of 1/(k + rank + 1). Ties break on the higher
// dense score recorded in denseScores, then on document order.
func Fuse(rankedLists [][]Ranked, k int, denseScores map[int]float64) []Ranked {
	if k <= 0 {
		k = DefaultRRFK
	}
	rrf := make(map[int]float64)
	for _, list := range rankedLists {
		for rank, r := range list {
			rrf[r.Index] += 1.0 / float64(k+rank+1)
		}
	}
	fused := make([]Ranked, 0, len(rrf))
	for idx, score := range rrf {
		fused = append(fused, Ranked{Index: idx, Score: score})
	}
	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		di, dj := denseScores[fused[i].Index], denseScores[fused[j].Index]
		if di != dj {
			return di > dj
		}
		return fused[i].Index < fused[j].Index
	})
	return fused
}

// Deduplicate walks items in order and accepts each one only if its token
// set stays below the Jaccard threshold against every accepted item.
// tokenSets must align with items by index; the returned slice holds the
// accepted positions.
func Deduplicate(tokenSets []map[string]struct{}, threshold float64) []int {
	if len(tokenSets) == 0 {
		return nil
	}
	accepted := []int{0}
	for i := 1; i < len(tokenSets); i++ {
		dup := false
		for _, j := range accepted {
			if len(tokenSets[i]) == 0 || len(tokenSets[j]) == 0 {
				continue
			}
			if jaccard(tokenSets[i], tokenSets[j]) >= threshold {
				dup = true
				break
			}
		}
		if !dup {
			accepted = append(accepted, i)
		}
	}
	return accepted
}

func jaccard(a, b map[string]struct{}) float64 {
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
