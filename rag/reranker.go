package rag

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/nhdandz/TSBot/chunk"
)

// Ensemble weights: cross-encoder 55%, retrieval 35%, metadata 10%.
const (
	weightCrossEncoder = 0.55
	weightRetrieval    = 0.35
	weightMetadata     = 0.10
)

// sectionWeights bias reranking toward the more actionable levels of the
// hierarchy. Chapters are mostly headings.
var sectionWeights = map[string]float64{
	chunk.SectionDiem:    0.9,
	chunk.SectionDieu:    0.8,
	chunk.SectionKhoan:   0.7,
	chunk.SectionMuc:     0.6,
	chunk.SectionChuong:  0.3,
	chunk.SectionUnknown: 0.4,
}

// Candidate is a retrieved chunk flowing through the pipeline with its
// accumulated scores.
type Candidate struct {
	Chunk             *chunk.Chunk
	Score             float64
	RRFScore          float64
	RerankScore       float64
	SiblingEnrichment bool
}

// Reranker orders candidates with a cross-encoder ensemble. Without a
// cross-encoder it degrades to retrieval + metadata scoring.
type Reranker struct {
	ce    CrossEncoder
	store *chunk.Store
}

// NewReranker creates a reranker; ce may be nil.
func NewReranker(ce CrossEncoder, store *chunk.Store) *Reranker {
	return &Reranker{ce: ce, store: store}
}

// HasCrossEncoder reports whether ensemble scoring is available.
func (r *Reranker) HasCrossEncoder() bool { return r.ce != nil }

// Rerank scores and sorts candidates, returning the top-k. Cross-encoder
// failures fall back to retrieval + metadata scoring for the whole batch.
func (r *Reranker) Rerank(ctx context.Context, query string, cands []Candidate, topK int) []Candidate {
	if len(cands) == 0 {
		return nil
	}

	var ceScores []float64
	if r.ce != nil {
		texts := make([]string, len(cands))
		for i, c := range cands {
			texts[i] = r.richText(c.Chunk)
		}
		raw, err := r.ce.Score(ctx, query, texts)
		if err != nil {
			slog.Warn("Cross-encoder scoring failed", "error", err)
		} else {
			ceScores = make([]float64, len(raw))
			for i, s := range raw {
				// Normalize from [-10, 10] to [0, 1]
				ceScores[i] = clamp01((s + 10) / 20)
			}
		}
	}

	out := make([]Candidate, len(cands))
	copy(out, cands)
	for i := range out {
		meta := r.metadataScore(out[i].Chunk, query)
		if ceScores != nil {
			out[i].RerankScore = weightCrossEncoder*ceScores[i] +
				weightRetrieval*out[i].Score +
				weightMetadata*meta
		} else {
			out[i].RerankScore = 0.7*out[i].Score + 0.3*meta
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RerankScore > out[j].RerankScore
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}

	slog.Info("Reranked candidates",
		"in", len(cands),
		"out", len(out),
		"cross_encoder", ceScores != nil)
	return out
}

// metadataScore combines section-type weight (50%), best title overlap
// with the query (40%), and a content length bonus (10%/5%).
func (r *Reranker) metadataScore(c *chunk.Chunk, query string) float64 {
	score := sectionWeights[c.SectionType()] * 0.5

	queryTokens := wordSet(query)
	best := 0.0
	for _, title := range []string{c.Metadata.ArticleTitle, c.Metadata.ChapterTitle, c.Metadata.SectionTitle} {
		if title == "" {
			continue
		}
		titleTokens := wordSet(title)
		if len(titleTokens) == 0 || len(queryTokens) == 0 {
			continue
		}
		overlap := float64(intersectionSize(queryTokens, titleTokens)) / float64(len(queryTokens))
		if overlap > best {
			best = overlap
		}
	}
	score += best * 0.4

	switch n := len(c.Content); {
	case n > 200:
		score += 0.1
	case n > 100:
		score += 0.05
	}

	return clamp01(score)
}

// richText assembles the cross-encoder input: immediate parent slice,
// legal path, title, and the truncated content.
func (r *Reranker) richText(c *chunk.Chunk) string {
	var parts []string

	for _, parent := range r.store.Parents(c, 1) {
		if parent.Content != "" {
			parts = append(parts, truncateRunes(parent.Content, 150))
		}
	}

	if path := c.LegalPath(); path != "" {
		parts = append(parts, path)
	}

	title := c.Metadata.ArticleTitle
	if title == "" {
		title = c.Metadata.SectionTitle
	}
	if title == "" {
		title = c.Metadata.ChapterTitle
	}
	if title != "" {
		parts = append(parts, title)
	}

	parts = append(parts, truncateRunes(c.Content, 600))
	return strings.Join(parts, " | ")
}

// wordSet splits on whitespace without stopword filtering; title matching
// wants function words too.
func wordSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		out[w] = struct{}{}
	}
	return out
}

func intersectionSize(a, b map[string]struct{}) int {
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
