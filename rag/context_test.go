package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhdandz/TSBot/chunk"
	"github.com/nhdandz/TSBot/query"
)

func TestBuildEnrichedContext(t *testing.T) {
	store := legalStore(t)
	b := NewContextBuilder(store, keywordEmbedder{}, 300, 0)
	k1, _ := store.Get("k1")

	qvec, _ := keywordEmbedder{}.EmbedQuery(context.Background(), "tiêu chuẩn sức khỏe khám tuyển")
	text := b.Build(context.Background(), []Candidate{{Chunk: k1}}, "tiêu chuẩn sức khỏe khám tuyển", qvec, query.BudgetFor("specific"))

	assert.Contains(t, text, "=== Nguồn 1 ===")
	assert.Contains(t, text, "[Chuong I: Quy định chung > Dieu 4: Tiêu chuẩn sức khỏe > Khoan 1]")
	assert.Contains(t, text, "Nội dung chính:\n1. Thí sinh phải đạt sức khỏe loại 1")
	// Parent context lines appear root-first
	assert.Contains(t, text, "Ngữ cảnh cấp trên:")
	assert.Less(t, strings.Index(text, "Chương I. Quy định chung"), strings.Index(text, "Điều 4."))
}

func TestBuildSkipsParentsWhenDisabled(t *testing.T) {
	store := legalStore(t)
	b := NewContextBuilder(store, keywordEmbedder{}, 300, 0)
	k1, _ := store.Get("k1")

	qvec := []float32{1, 0, 0}
	text := b.Build(context.Background(), []Candidate{{Chunk: k1}}, "sức khỏe", qvec, query.Budget{MaxChunks: 1})

	assert.NotContains(t, text, "Ngữ cảnh cấp trên:")
	assert.NotContains(t, text, "Các mục con liên quan:")
	assert.NotContains(t, text, "Các mục cùng cấp:")
}

func TestBuildIncludesRelevantSiblings(t *testing.T) {
	store := legalStore(t)
	b := NewContextBuilder(store, keywordEmbedder{}, 300, 0)
	k1, _ := store.Get("k1")

	// k2 is k1's sibling; the embedder puts both on the health axis via
	// "khám"... k2 has no health keyword, so keyword overlap decides.
	qvec := []float32{1, 0, 0}
	siblings := b.SmartSiblings(context.Background(), k1, "thí sinh cận thị khúc xạ", qvec, 2)
	require.NotEmpty(t, siblings)
	assert.Equal(t, "k2", siblings[0].chunk.ID)
}

func TestBuildTokenBudgetDropsTail(t *testing.T) {
	store := legalStore(t)
	// Tiny ceiling: only the first source fits.
	b := NewContextBuilder(store, keywordEmbedder{}, 300, 10)
	k1, _ := store.Get("k1")
	d5, _ := store.Get("d5")

	qvec := []float32{1, 0, 0}
	text := b.Build(context.Background(), []Candidate{{Chunk: k1}, {Chunk: d5}}, "sức khỏe", qvec, query.Budget{MaxChunks: 2})

	assert.Contains(t, text, "=== Nguồn 1 ===")
	assert.NotContains(t, text, "=== Nguồn 2 ===")
}

func TestEnrichSiblingsOnlyMidLevels(t *testing.T) {
	store := legalStore(t)
	b := NewContextBuilder(store, keywordEmbedder{}, 300, 0)
	d4, _ := store.Get("d4")
	k1, _ := store.Get("k1")

	qvec := []float32{0, 1, 0}
	// d4 is an article, so its sibling d5 (on the politics axis, matching
	// the query vector) is pulled in. k1 is a clause and adds nothing.
	enriched := b.EnrichSiblings(context.Background(), []Candidate{
		{Chunk: d4, Score: 0.9},
		{Chunk: k1, Score: 0.8},
	}, "tiêu chuẩn chính trị", qvec, 5)

	require.Len(t, enriched, 3)
	assert.Equal(t, "d5", enriched[2].Chunk.ID)
	assert.True(t, enriched[2].SiblingEnrichment)
}

func TestEnrichSiblingsSkipsSeen(t *testing.T) {
	store := legalStore(t)
	b := NewContextBuilder(store, keywordEmbedder{}, 300, 0)
	d4, _ := store.Get("d4")
	d5, _ := store.Get("d5")

	qvec := []float32{0, 1, 0}
	enriched := b.EnrichSiblings(context.Background(), []Candidate{
		{Chunk: d4, Score: 0.9},
		{Chunk: d5, Score: 0.8},
	}, "tiêu chuẩn chính trị", qvec, 5)

	// d5 is already a candidate; enrichment must not duplicate it.
	assert.Len(t, enriched, 2)
}

func TestEnrichSiblingsHonorsIntentBudget(t *testing.T) {
	chunks := []*chunk.Chunk{
		{
			ID:       "c1",
			Content:  "Chương I. Quy định chung",
			Metadata: chunk.Metadata{Chapter: "I", ChapterTitle: "Quy định chung", Source: "TT-50"},
		},
		{
			ID:      "d4",
			Content: "Điều 4. Tiêu chuẩn sức khỏe của thí sinh.",
			Metadata: chunk.Metadata{
				Chapter: "I", Article: "4", ArticleTitle: "Tiêu chuẩn sức khỏe",
				ParentID: "c1", Source: "TT-50",
			},
		},
		{
			ID:      "d5",
			Content: "Điều 5. Tiêu chuẩn chính trị của thí sinh.",
			Metadata: chunk.Metadata{
				Chapter: "I", Article: "5", ArticleTitle: "Tiêu chuẩn chính trị",
				ParentID: "c1", Source: "TT-50",
			},
		},
		{
			ID:      "d6",
			Content: "Điều 6. Thẩm tra lý lịch chính trị và đạo đức.",
			Metadata: chunk.Metadata{
				Chapter: "I", Article: "6", ArticleTitle: "Thẩm tra chính trị",
				ParentID: "c1", Source: "TT-50",
			},
		},
	}
	store, err := chunk.NewStore(chunks)
	require.NoError(t, err)
	b := NewContextBuilder(store, keywordEmbedder{}, 300, 0)
	d4, _ := store.Get("d4")

	// Both d5 and d6 qualify on the politics axis; a sibling budget of one
	// keeps only the best of them.
	qvec := []float32{0, 1, 0}
	enriched := b.EnrichSiblings(context.Background(), []Candidate{
		{Chunk: d4, Score: 0.9},
	}, "tiêu chuẩn chính trị", qvec, 1)
	assert.Len(t, enriched, 2)

	full := b.EnrichSiblings(context.Background(), []Candidate{
		{Chunk: d4, Score: 0.9},
	}, "tiêu chuẩn chính trị", qvec, 5)
	assert.Len(t, full, 3)

	// A zero budget disables enrichment entirely.
	none := b.EnrichSiblings(context.Background(), []Candidate{
		{Chunk: d4, Score: 0.9},
	}, "tiêu chuẩn chính trị", qvec, 0)
	assert.Len(t, none, 1)
}

func TestCountTokensNonZero(t *testing.T) {
	store := legalStore(t)
	b := NewContextBuilder(store, keywordEmbedder{}, 300, 0)
	assert.Greater(t, b.CountTokens("Điều 4. Tiêu chuẩn sức khỏe của thí sinh dự tuyển"), 0)
}
