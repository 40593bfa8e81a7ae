package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/nhdandz/TSBot/chunk"
	"github.com/nhdandz/TSBot/embedder"
	"github.com/nhdandz/TSBot/query"
)

const (
	// minRelatedScore is the relevance floor for descendants and siblings
	// pulled into the context.
	minRelatedScore = 0.3

	// enrichSiblingMax caps how many siblings the enrichment step may add
	// per mid-level hit.
	enrichSiblingMax = 5

	defaultParentContextLen = 300
	defaultMaxContextTokens = 8000
)

// ContextBuilder turns merged candidates into the enriched prompt context:
// legal path, parent excerpts, main content, and scored descendants and
// siblings, bounded by the intent budget and a token ceiling.
type ContextBuilder struct {
	store            *chunk.Store
	embed            embedder.Embedder
	parentContextLen int
	maxTokens        int
	enc              *tiktoken.Tiktoken
}

// NewContextBuilder creates a builder. Non-positive limits use defaults.
func NewContextBuilder(store *chunk.Store, embed embedder.Embedder, parentContextLen, maxTokens int) *ContextBuilder {
	if parentContextLen <= 0 {
		parentContextLen = defaultParentContextLen
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxContextTokens
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		slog.Warn("Token encoder unavailable, falling back to estimate", "error", err)
		enc = nil
	}
	return &ContextBuilder{
		store:            store,
		embed:            embed,
		parentContextLen: parentContextLen,
		maxTokens:        maxTokens,
		enc:              enc,
	}
}

// CountTokens counts prompt tokens, estimating when no encoder is loaded.
func (b *ContextBuilder) CountTokens(s string) int {
	if b.enc == nil {
		return len(s) / 4
	}
	return len(b.enc.Encode(s, nil, nil))
}

type scoredChunk struct {
	chunk *chunk.Chunk
	score float64
}

// scoreRelated rates chunks against the query: 70% cosine similarity of
// content embeddings, 30% keyword overlap. Embedding failures degrade to
// keyword-only scoring.
func (b *ContextBuilder) scoreRelated(ctx context.Context, queryText string, queryVector []float32, chunks []*chunk.Chunk) []float64 {
	contents := make([]string, len(chunks))
	for i, c := range chunks {
		contents[i] = c.Content
	}

	var vectors [][]float32
	if b.embed != nil {
		var err error
		vectors, err = b.embed.Embed(ctx, contents)
		if err != nil {
			slog.Warn("Related-chunk embedding failed, using keyword overlap only", "error", err)
			vectors = nil
		}
	}

	queryTokens := wordSet(queryText)
	scores := make([]float64, len(chunks))
	for i := range chunks {
		semantic := 0.0
		if vectors != nil {
			semantic = clamp01(embedder.Dot(queryVector, vectors[i]))
		}
		keyword := 0.0
		if len(queryTokens) > 0 {
			keyword = float64(intersectionSize(queryTokens, wordSet(contents[i]))) / float64(len(queryTokens))
		}
		scores[i] = 0.7*semantic + 0.3*keyword
	}
	return scores
}

func (b *ContextBuilder) selectRelated(ctx context.Context, queryText string, queryVector []float32, chunks []*chunk.Chunk, max int, minScore float64) []scoredChunk {
	if len(chunks) == 0 || max <= 0 {
		return nil
	}
	scores := b.scoreRelated(ctx, queryText, queryVector, chunks)
	selected := make([]scoredChunk, 0, len(chunks))
	for i, c := range chunks {
		if scores[i] >= minScore {
			selected = append(selected, scoredChunk{chunk: c, score: scores[i]})
		}
	}
	sort.SliceStable(selected, func(i, j int) bool { return selected[i].score > selected[j].score })
	if len(selected) > max {
		selected = selected[:max]
	}
	return selected
}

// SmartDescendants returns the most relevant transitive children.
func (b *ContextBuilder) SmartDescendants(ctx context.Context, c *chunk.Chunk, queryText string, queryVector []float32, max int) []scoredChunk {
	return b.selectRelated(ctx, queryText, queryVector, b.store.Descendants(c), max, minRelatedScore)
}

// SmartSiblings returns the most relevant same-parent chunks.
func (b *ContextBuilder) SmartSiblings(ctx context.Context, c *chunk.Chunk, queryText string, queryVector []float32, max int) []scoredChunk {
	return b.selectRelated(ctx, queryText, queryVector, b.store.Siblings(c, 10), max, minRelatedScore)
}

// EnrichSiblings appends relevant siblings of mid-level hits (dieu, muc)
// as extra candidates, so an article hit brings its neighboring clauses
// into reranking. The intent's sibling budget caps the additions per hit;
// already-seen chunks are skipped.
func (b *ContextBuilder) EnrichSiblings(ctx context.Context, cands []Candidate, queryText string, queryVector []float32, maxSiblings int) []Candidate {
	limit := enrichSiblingMax
	if maxSiblings < limit {
		limit = maxSiblings
	}
	if limit <= 0 {
		return cands
	}

	enriched := append([]Candidate(nil), cands...)
	seen := make(map[string]struct{}, len(cands))
	for _, c := range cands {
		seen[c.Chunk.CanonicalID()] = struct{}{}
	}

	for _, cand := range cands {
		st := cand.Chunk.SectionType()
		if st != chunk.SectionDieu && st != chunk.SectionMuc {
			continue
		}
		for _, sib := range b.SmartSiblings(ctx, cand.Chunk, queryText, queryVector, limit) {
			id := sib.chunk.CanonicalID()
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			enriched = append(enriched, Candidate{
				Chunk:             sib.chunk,
				Score:             sib.score,
				SiblingEnrichment: true,
			})
		}
	}

	if len(enriched) > len(cands) {
		slog.Info("Sibling enrichment", "before", len(cands), "after", len(enriched))
	}
	return enriched
}

// MergeOverlapping removes hierarchy overlaps from reranked candidates,
// keeping the deeper chunk of each overlapping pair, capped at maxChunks.
func MergeOverlapping(store *chunk.Store, cands []Candidate, maxChunks int) []Candidate {
	if len(cands) == 0 {
		return nil
	}
	if maxChunks <= 0 {
		maxChunks = 3
	}
	if len(cands) == 1 {
		return cands[:1]
	}

	merged := []Candidate{cands[0]}
	for _, cand := range cands[1:] {
		overlapping := false
		for i, existing := range merged {
			if store.Overlaps(cand.Chunk, existing.Chunk) {
				overlapping = true
				// Replace in place so source numbering keeps rank order.
				if cand.Chunk.Depth() > existing.Chunk.Depth() {
					merged[i] = cand
				}
				break
			}
		}
		if !overlapping {
			merged = append(merged, cand)
		}
		if len(merged) >= maxChunks {
			break
		}
	}

	if len(merged) > maxChunks {
		merged = merged[:maxChunks]
	}
	return merged
}

// buildOne renders a single candidate's enriched block.
func (b *ContextBuilder) buildOne(ctx context.Context, c *chunk.Chunk, queryText string, queryVector []float32, budget query.Budget) string {
	var parts []string

	if path := c.LegalPath(); path != "" {
		parts = append(parts, "["+path+"]")
	}

	if budget.IncludeParents {
		parents := b.store.Parents(c, 2)
		for i := len(parents) - 1; i >= 0; i-- {
			parent := parents[i]
			if parent.Content == "" {
				continue
			}
			prefix := ""
			if path := parent.LegalPath(); path != "" {
				prefix = "[" + path + "] "
			}
			parts = append(parts, "Ngữ cảnh cấp trên: "+prefix+truncateRunes(parent.Content, b.parentContextLen))
		}
	}

	parts = append(parts, "Nội dung chính:\n"+c.Content)

	if budget.MaxDescendants > 0 {
		if descendants := b.SmartDescendants(ctx, c, queryText, queryVector, budget.MaxDescendants); len(descendants) > 0 {
			lines := make([]string, 0, len(descendants))
			for _, d := range descendants {
				lines = append(lines, "  - "+bracketPrefix(d.chunk)+d.chunk.Content)
			}
			parts = append(parts, "Các mục con liên quan:\n"+strings.Join(lines, "\n"))
		}
	}

	if budget.MaxSiblings > 0 {
		if siblings := b.SmartSiblings(ctx, c, queryText, queryVector, budget.MaxSiblings); len(siblings) > 0 {
			lines := make([]string, 0, len(siblings))
			for _, s := range siblings {
				lines = append(lines, "  - "+bracketPrefix(s.chunk)+s.chunk.Content)
			}
			parts = append(parts, "Các mục cùng cấp:\n"+strings.Join(lines, "\n"))
		}
	}

	return strings.Join(parts, "\n\n")
}

// Build renders the full multi-source context. Sources that would push
// the prompt past the token ceiling are dropped from the tail; the first
// source always survives.
func (b *ContextBuilder) Build(ctx context.Context, cands []Candidate, queryText string, queryVector []float32, budget query.Budget) string {
	if len(cands) == 0 {
		return ""
	}

	var parts []string
	total := 0
	for i, cand := range cands {
		block := fmt.Sprintf("=== Nguồn %d ===\n%s", i+1, b.buildOne(ctx, cand.Chunk, queryText, queryVector, budget))
		tokens := b.CountTokens(block)
		if len(parts) > 0 && total+tokens > b.maxTokens {
			slog.Warn("Context token budget reached, dropping remaining sources",
				"kept", len(parts),
				"dropped", len(cands)-i,
				"tokens", total)
			break
		}
		parts = append(parts, block)
		total += tokens
	}

	slog.Debug("Context built", "sources", len(parts), "tokens", total)
	return strings.Join(parts, "\n\n")
}

func bracketPrefix(c *chunk.Chunk) string {
	if path := c.LegalPath(); path != "" {
		return "[" + path + "] "
	}
	return ""
}
