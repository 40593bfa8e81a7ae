// Package search implements the sparse half of hybrid retrieval: Okapi
// BM25 scoring over tokenised chunk contents, reciprocal-rank fusion of
// ranked lists, and token-set deduplication.
package search

import (
	"log/slog"
	"math"
	"sort"

	"github.com/nhdandz/TSBot/vietnamese"
)

const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// BM25 scores documents with the Okapi weighting scheme. Build once over
// the corpus, then Scores per query; the index is read-only afterwards.
type BM25 struct {
	k1        float64
	b         float64
	docTokens [][]string
	idf       map[string]float64
	avgDL     float64
	built     bool
}

// NewBM25 returns an index with the given parameters; non-positive values
// fall back to the defaults.
func NewBM25(k1, b float64) *BM25 {
	if k1 <= 0 {
		k1 = DefaultK1
	}
	if b <= 0 {
		b = DefaultB
	}
	return &BM25{k1: k1, b: b}
}

// Build tokenises the documents and computes corpus IDF.
func (m *BM25) Build(documents []string) {
	m.docTokens = make([][]string, len(documents))
	var total int
	for i, doc := range documents {
		m.docTokens[i] = vietnamese.Tokenize(doc)
		total += len(m.docTokens[i])
	}
	m.avgDL = float64(total) / math.Max(float64(len(documents)), 1)

	df := make(map[string]int)
	for _, tokens := range m.docTokens {
		seen := make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}
	n := float64(len(documents))
	m.idf = make(map[string]float64, len(df))
	for term, freq := range df {
		f := float64(freq)
		m.idf[term] = math.Log((n-f+0.5)/(f+0.5) + 1)
	}
	m.built = true
	slog.Info("BM25 index built", "docs", len(documents), "avg_dl", m.avgDL)
}

// Built reports whether the index has a corpus.
func (m *BM25) Built() bool { return m.built }

// Scores returns one BM25 score per corpus document for the query.
// Out-of-vocabulary query tokens contribute zero.
func (m *BM25) Scores(query string) []float64 {
	if !m.built {
		return nil
	}
	queryTokens := vietnamese.Tokenize(query)
	scores := make([]float64, len(m.docTokens))
	for i, docTokens := range m.docTokens {
		docLen := float64(len(docTokens))
		tf := make(map[string]int, len(docTokens))
		for _, t := range docTokens {
			tf[t]++
		}
		var score float64
		for _, qt := range queryTokens {
			idf, ok := m.idf[qt]
			if !ok {
				continue
			}
			f := float64(tf[qt])
			numerator := f * (m.k1 + 1)
			denominator := f + m.k1*(1-m.b+m.b*docLen/math.Max(m.avgDL, 1))
			score += idf * numerator / math.Max(denominator, 0.001)
		}
		scores[i] = score
	}
	return scores
}

// Ranked is a (document index, score) pair inside a ranked list.
type Ranked struct {
	Index int
	Score float64
}

// TopPositive returns the top-k documents with strictly positive scores,
// ordered by score desc with index as the tie-break.
func TopPositive(scores []float64, k int) []Ranked {
	ranked := make([]Ranked, 0, len(scores))
	for i, s := range scores {
		if s > 0 {
			ranked = append(ranked, Ranked{Index: i, Score: s})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Index < ranked[j].Index
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}
