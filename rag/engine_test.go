package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhdandz/TSBot/cache"
	"github.com/nhdandz/TSBot/chunk"
	"github.com/nhdandz/TSBot/databases"
	"github.com/nhdandz/TSBot/llm"
)

// legalStore builds a small hierarchy: one chapter, two articles, two
// clauses under the first article.
func legalStore(t *testing.T) *chunk.Store {
	t.Helper()
	chunks := []*chunk.Chunk{
		{
			ID:      "c1",
			Content: "Chương I. Quy định chung về tuyển sinh đào tạo trong quân đội",
			Metadata: chunk.Metadata{
				Chapter: "I", ChapterTitle: "Quy định chung", Source: "TT-50",
			},
		},
		{
			ID:      "d4",
			Content: "Điều 4. Thí sinh dự tuyển phải đạt tiêu chuẩn sức khỏe theo quy định.",
			Metadata: chunk.Metadata{
				Chapter: "I", Article: "4", ArticleTitle: "Tiêu chuẩn sức khỏe",
				ParentID: "c1", Source: "TT-50",
			},
		},
		{
			ID:      "k1",
			Content: "1. Thí sinh phải đạt sức khỏe loại 1 hoặc loại 2 theo kết luận khám tuyển.",
			Metadata: chunk.Metadata{
				Chapter: "I", ChapterTitle: "Quy định chung",
				Article: "4", ArticleTitle: "Tiêu chuẩn sức khỏe",
				Clause:  "1", ParentID: "d4", Source: "TT-50",
			},
		},
		{
			ID:      "k2",
			Content: "2. Không tuyển thí sinh mắc tật khúc xạ cận thị quá ba điốp.",
			Metadata: chunk.Metadata{
				Chapter: "I", ChapterTitle: "Quy định chung",
				Article: "4", ArticleTitle: "Tiêu chuẩn sức khỏe",
				Clause:  "2", ParentID: "d4", Source: "TT-50",
			},
		},
		{
			ID:      "d5",
			Content: "Điều 5. Thí sinh dự tuyển phải đạt tiêu chuẩn chính trị, đạo đức theo quy định.",
			Metadata: chunk.Metadata{
				Chapter: "I", Article: "5", ArticleTitle: "Tiêu chuẩn chính trị",
				ParentID: "c1", Source: "TT-50",
			},
		},
	}
	store, err := chunk.NewStore(chunks)
	require.NoError(t, err)
	return store
}

// keywordEmbedder maps texts onto fixed axes so cosine similarity is
// deterministic in tests.
type keywordEmbedder struct{}

func (keywordEmbedder) vector(text string) []float32 {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "sức khỏe") || strings.Contains(lower, "khám"):
		return []float32{1, 0, 0}
	case strings.Contains(lower, "chính trị"):
		return []float32{0, 1, 0}
	default:
		return []float32{0, 0, 1}
	}
}

func (e keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e keywordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

func (keywordEmbedder) Dimension() int { return 3 }
func (keywordEmbedder) Close() error   { return nil }

// stubVectors returns canned dense hits regardless of the query vector.
type stubVectors struct {
	hits []databases.SearchResult
}

func (s *stubVectors) CreateCollection(context.Context, string, uint64) error { return nil }
func (s *stubVectors) Upsert(context.Context, string, []databases.Point) error {
	return nil
}
func (s *stubVectors) Search(context.Context, string, []float32, int, float32, *databases.Filter) ([]databases.SearchResult, error) {
	return s.hits, nil
}
func (s *stubVectors) Count(context.Context, string) (uint64, error)                  { return 0, nil }
func (s *stubVectors) DeleteByFilter(context.Context, string, *databases.Filter) error { return nil }
func (s *stubVectors) Close() error                                                   { return nil }

// stubLLM returns a fixed completion and a fixed JSON body.
type stubLLM struct {
	text string
	json string
}

func (s *stubLLM) Generate(context.Context, llm.Request) (string, error) { return s.text, nil }
func (s *stubLLM) GenerateJSON(_ context.Context, _ llm.Request, out any) error {
	return llm.DecodeLoose(s.json, out)
}
func (s *stubLLM) Model() string { return "stub" }
func (s *stubLLM) Close() error  { return nil }

func denseHit(store *chunk.Store, id string, score float32) databases.SearchResult {
	c, _ := store.Get(id)
	return databases.SearchResult{
		ID:      "point-" + id,
		Score:   score,
		Payload: c.Payload(),
	}
}

func newTestEngine(store *chunk.Store, vectors databases.VectorStore, sem *cache.Semantic) *Engine {
	generator := &stubLLM{text: strings.Repeat("Theo Điều 4, Khoản 1, thí sinh phải đạt sức khỏe loại 1 hoặc loại 2. ", 2)}
	grader := &stubLLM{json: `{"score": 8, "reason": "liên quan"}`}
	return NewEngine(Config{}, store, vectors, keywordEmbedder{}, generator, grader, nil, sem)
}

func TestAnswerReturnsGroundedResult(t *testing.T) {
	store := legalStore(t)
	vectors := &stubVectors{hits: []databases.SearchResult{
		denseHit(store, "k1", 0.9),
		denseHit(store, "d4", 0.7),
	}}
	e := newTestEngine(store, vectors, nil)

	res, err := e.Answer(context.Background(), "Tiêu chuẩn sức khỏe để dự tuyển là gì")
	require.NoError(t, err)
	assert.Contains(t, res.Answer, "Điều 4")
	assert.NotEmpty(t, res.Sources)
	assert.Greater(t, res.DocumentsRetrieved, 0)
	assert.Greater(t, res.DocumentsRelevant, 0)
	assert.False(t, res.CacheHit)

	for _, src := range res.Sources {
		assert.NotEmpty(t, src.Content)
		assert.NotEmpty(t, src.LegalPath)
		assert.Equal(t, "TT-50", src.Document)
	}
}

func TestAnswerSecondCallHitsCache(t *testing.T) {
	store := legalStore(t)
	vectors := &stubVectors{hits: []databases.SearchResult{denseHit(store, "k1", 0.9)}}
	sem := cache.New(cache.Config{})
	e := newTestEngine(store, vectors, sem)

	q := "Tiêu chuẩn sức khỏe để dự tuyển là gì"
	first, err := e.Answer(context.Background(), q)
	require.NoError(t, err)
	require.False(t, first.CacheHit)

	second, err := e.Answer(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Answer, second.Answer)
}

type lookupObserver struct {
	hits   int
	misses int
}

func (o *lookupObserver) RecordCache(hit bool) {
	if hit {
		o.hits++
	} else {
		o.misses++
	}
}

func TestCacheObserverRecordsLookups(t *testing.T) {
	store := legalStore(t)
	vectors := &stubVectors{hits: []databases.SearchResult{denseHit(store, "k1", 0.9)}}
	e := newTestEngine(store, vectors, cache.New(cache.Config{}))
	obs := &lookupObserver{}
	e.SetCacheObserver(obs)

	q := "Tiêu chuẩn sức khỏe để dự tuyển là gì"
	_, err := e.Answer(context.Background(), q)
	require.NoError(t, err)
	_, err = e.Answer(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, 1, obs.misses)
	assert.Equal(t, 1, obs.hits)
}

func TestAnswerNoResults(t *testing.T) {
	store := legalStore(t)
	e := newTestEngine(store, &stubVectors{}, nil)

	res, err := e.Answer(context.Background(), "qwertyuiop")
	require.NoError(t, err)
	assert.Equal(t, emptyAnswer, res.Answer)
	assert.Empty(t, res.Sources)
	assert.Zero(t, res.DocumentsRetrieved)
}

func TestDeduplicateDropsNearIdentical(t *testing.T) {
	store := legalStore(t)
	e := newTestEngine(store, &stubVectors{}, nil)

	k1, _ := store.Get("k1")
	cands := []Candidate{
		{Chunk: k1, Score: 0.9},
		{Chunk: k1, Score: 0.8},
	}
	assert.Len(t, e.deduplicate(cands), 1)
}

func TestMergeOverlappingKeepsDeeper(t *testing.T) {
	store := legalStore(t)
	d4, _ := store.Get("d4")
	k1, _ := store.Get("k1")
	d5, _ := store.Get("d5")

	merged := MergeOverlapping(store, []Candidate{
		{Chunk: d4, RerankScore: 0.9},
		{Chunk: k1, RerankScore: 0.8},
		{Chunk: d5, RerankScore: 0.7},
	}, 3)

	ids := make([]string, 0, len(merged))
	for _, m := range merged {
		ids = append(ids, m.Chunk.ID)
	}
	// k1 replaces its ancestor d4; d5 does not overlap.
	assert.ElementsMatch(t, []string{"k1", "d5"}, ids)
}

func TestMergeOverlappingPreservesRankOrder(t *testing.T) {
	store := legalStore(t)
	d4, _ := store.Get("d4")
	k1, _ := store.Get("k1")
	d5, _ := store.Get("d5")

	merged := MergeOverlapping(store, []Candidate{
		{Chunk: d4, RerankScore: 0.9},
		{Chunk: d5, RerankScore: 0.8},
		{Chunk: k1, RerankScore: 0.7},
	}, 3)

	// k1 takes its ancestor d4's slot, so source numbering still follows
	// the rerank order.
	require.Len(t, merged, 2)
	assert.Equal(t, "k1", merged[0].Chunk.ID)
	assert.Equal(t, "d5", merged[1].Chunk.ID)
}

func TestMergeOverlappingRespectsCap(t *testing.T) {
	store := legalStore(t)
	d5, _ := store.Get("d5")
	k1, _ := store.Get("k1")
	k2, _ := store.Get("k2")

	merged := MergeOverlapping(store, []Candidate{
		{Chunk: d5}, {Chunk: k1}, {Chunk: k2},
	}, 2)
	assert.Len(t, merged, 2)
}

func TestGradeRerankBlendsOntoFallbackScore(t *testing.T) {
	store := legalStore(t)
	e := newTestEngine(store, &stubVectors{}, nil)

	c1, _ := store.Get("c1")
	d4, _ := store.Get("d4")
	d5, _ := store.Get("d5")
	k1, _ := store.Get("k1")
	out := e.gradeRerank(context.Background(), "sức khỏe", []Candidate{
		{Chunk: d5, Score: 0.2, RerankScore: 0.3},
		{Chunk: k1, Score: 0.9, RerankScore: 0.8},
		{Chunk: d4, Score: 0.5, RerankScore: 0.5},
		{Chunk: c1, Score: 0.4, RerankScore: 0.4},
	})
	// The grader refines ordering but never narrows the candidate set.
	require.Len(t, out, 4)
	// Same grader score for all, so the fallback score decides.
	assert.Equal(t, "k1", out[0].Chunk.ID)
	assert.InDelta(t, 0.6*0.8+0.4*0.8, out[0].RerankScore, 1e-9)
}

func TestRerankWithoutCrossEncoderBlendsMetadata(t *testing.T) {
	chunks := []*chunk.Chunk{
		{
			ID:      "d4",
			Content: "Điều 4. Thí sinh dự tuyển phải đạt tiêu chuẩn sức khỏe theo quy định hiện hành của Bộ Quốc phòng.",
			Metadata: chunk.Metadata{
				Article: "4", ArticleTitle: "tiêu chuẩn sức khỏe", Source: "TT-50",
			},
		},
		{
			ID:       "g1",
			Content:  "Ghi chú chung về tài liệu.",
			Metadata: chunk.Metadata{Source: "TT-50"},
		},
	}
	store, err := chunk.NewStore(chunks)
	require.NoError(t, err)
	vectors := &stubVectors{hits: []databases.SearchResult{
		denseHit(store, "g1", 0.60),
		denseHit(store, "d4", 0.55),
	}}
	generator := &stubLLM{text: strings.Repeat("Theo Điều 4, thí sinh phải đạt tiêu chuẩn sức khỏe theo quy định. ", 2)}
	e := NewEngine(Config{}, store, vectors, keywordEmbedder{}, generator, nil, nil, nil)

	res, err := e.Answer(context.Background(), "tiêu chuẩn sức khỏe")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(res.Sources), 2)
	// The slightly-better dense hit loses to the section weight and full
	// title overlap of the article chunk.
	assert.Contains(t, res.Sources[0].Content, "Điều 4")
	assert.Contains(t, res.Sources[1].Content, "Ghi chú")
	assert.Greater(t, res.Sources[0].Score, res.Sources[1].Score)
}
