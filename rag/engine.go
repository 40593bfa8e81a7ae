// Package rag implements the legal retrieval pipeline: semantic cache,
// intent analysis, query expansion, hybrid dense+BM25 search fused with
// RRF, deduplication, sibling enrichment, cross-encoder reranking,
// hierarchy-aware merging, enriched context assembly, and grounded answer
// generation.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nhdandz/TSBot/cache"
	"github.com/nhdandz/TSBot/chunk"
	"github.com/nhdandz/TSBot/databases"
	"github.com/nhdandz/TSBot/embedder"
	"github.com/nhdandz/TSBot/llm"
	"github.com/nhdandz/TSBot/query"
	"github.com/nhdandz/TSBot/search"
	"github.com/nhdandz/TSBot/vietnamese"
)

// Config tunes the retrieval pipeline.
type Config struct {
	Collection          string  `yaml:"collection"`
	TopK                int     `yaml:"top_k"`
	RerankTopK          int     `yaml:"rerank_top_k"`
	DedupeThreshold     float64 `yaml:"dedupe_threshold"`
	ParentContextLength int     `yaml:"parent_context_length"`
	MaxContextTokens    int     `yaml:"max_context_tokens"`
	GraderParallelism   int     `yaml:"grader_parallelism"`
}

// SetDefaults fills missing settings.
func (c *Config) SetDefaults() {
	if c.Collection == "" {
		c.Collection = "legal_documents"
	}
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if c.RerankTopK <= 0 {
		c.RerankTopK = 3
	}
	if c.DedupeThreshold <= 0 {
		c.DedupeThreshold = 0.85
	}
	if c.ParentContextLength <= 0 {
		c.ParentContextLength = 300
	}
	if c.MaxContextTokens <= 0 {
		c.MaxContextTokens = 8000
	}
	if c.GraderParallelism <= 0 {
		c.GraderParallelism = 4
	}
}

// Source is one citation attached to an answer.
type Source struct {
	ContentPreview string  `json:"content_preview"`
	Content        string  `json:"content"`
	Score          float64 `json:"score"`
	LegalPath      string  `json:"legal_path,omitempty"`
	Chapter        string  `json:"chapter,omitempty"`
	Article        string  `json:"article,omitempty"`
	Document       string  `json:"document,omitempty"`
}

// Result is the pipeline's answer with its provenance.
type Result struct {
	Query              string   `json:"query"`
	Answer             string   `json:"answer"`
	Sources            []Source `json:"sources"`
	Intent             string   `json:"intent"`
	DocumentsRetrieved int      `json:"documents_retrieved"`
	DocumentsRelevant  int      `json:"documents_relevant"`
	CacheHit           bool     `json:"-"`
}

// CacheObserver counts semantic cache lookups. *observability.Metrics
// satisfies it.
type CacheObserver interface {
	RecordCache(hit bool)
}

// Engine runs the pipeline. All collaborators are injected; the BM25
// index is built once over the chunk store at construction.
type Engine struct {
	config    Config
	store     *chunk.Store
	vectors   databases.VectorStore
	embed     embedder.Embedder
	generator llm.LLM
	grader    llm.LLM
	reranker  *Reranker
	cache     *cache.Semantic
	cacheObs  CacheObserver
	builder   *ContextBuilder
	bm25      *search.BM25
	retryer   *Retryer
	idIndex   map[string]int
}

// NewEngine wires the pipeline. grader, ce, and sem may be nil; the
// engine degrades to the corresponding fallbacks.
func NewEngine(
	cfg Config,
	store *chunk.Store,
	vectors databases.VectorStore,
	embed embedder.Embedder,
	generator llm.LLM,
	grader llm.LLM,
	ce CrossEncoder,
	sem *cache.Semantic,
) *Engine {
	cfg.SetDefaults()

	bm25 := search.NewBM25(0, 0)
	bm25.Build(store.Contents())

	idIndex := make(map[string]int, store.Len())
	for i, c := range store.All() {
		idIndex[c.CanonicalID()] = i
	}

	return &Engine{
		config:    cfg,
		store:     store,
		vectors:   vectors,
		embed:     embed,
		generator: generator,
		grader:    grader,
		reranker:  NewReranker(ce, store),
		cache:     sem,
		builder:   NewContextBuilder(store, embed, cfg.ParentContextLength, cfg.MaxContextTokens),
		bm25:      bm25,
		retryer:   NewRetryer(DefaultRetryConfig()),
		idIndex:   idIndex,
	}
}

// SetCacheObserver attaches a cache lookup counter.
func (e *Engine) SetCacheObserver(obs CacheObserver) { e.cacheObs = obs }

// Answer runs the full pipeline for one question.
func (e *Engine) Answer(ctx context.Context, queryText string) (*Result, error) {
	slog.Info("Processing legal query", "query", queryText)

	queryVector, err := e.embed.EmbedQuery(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	if e.cache != nil {
		if hit := e.cache.Lookup(queryText, queryVector); hit != nil {
			if cached, ok := hit.Response.(*Result); ok {
				slog.Info("Semantic cache hit", "similarity", hit.Similarity)
				if e.cacheObs != nil {
					e.cacheObs.RecordCache(true)
				}
				out := *cached
				out.CacheHit = true
				return &out, nil
			}
		}
		if e.cacheObs != nil {
			e.cacheObs.RecordCache(false)
		}
	}

	analysis := query.Analyze(queryText)
	budget := query.BudgetFor(analysis.Intent)
	slog.Info("Query analysed", "intent", analysis.Intent, "confidence", analysis.Confidence)

	variants := query.Expand(queryText, analysis.Intent)
	slog.Debug("Query expanded", "variants", len(variants))

	candidates, err := e.hybridSearch(ctx, variants, queryVector)
	if err != nil {
		return nil, err
	}
	retrieved := len(candidates)
	slog.Info("Hybrid search done", "candidates", retrieved)
	if retrieved == 0 {
		return e.emptyResult(queryText, analysis.Intent), nil
	}

	candidates = e.deduplicate(candidates)
	slog.Debug("Deduplicated", "candidates", len(candidates))

	candidates = e.builder.EnrichSiblings(ctx, candidates, queryText, queryVector, budget.MaxSiblings)

	reranked := e.reranker.Rerank(ctx, queryText, candidates, e.config.RerankTopK*2)
	if !e.reranker.HasCrossEncoder() && e.grader != nil {
		reranked = e.gradeRerank(ctx, queryText, reranked)
	}

	merged := MergeOverlapping(e.store, reranked, budget.MaxChunks)
	if len(merged) == 0 {
		return e.emptyResult(queryText, analysis.Intent), nil
	}

	contextText := e.builder.Build(ctx, merged, queryText, queryVector, budget)

	answer, err := e.generateAnswer(ctx, queryText, contextText, analysis.Intent)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	result := &Result{
		Query:              queryText,
		Answer:             answer,
		Sources:            formatSources(merged),
		Intent:             analysis.Intent,
		DocumentsRetrieved: retrieved,
		DocumentsRelevant:  len(merged),
	}

	if e.cache != nil && len(answer) > 50 {
		e.cache.Put(queryText, queryVector, result)
	}
	return result, nil
}

// hybridSearch fans out over the query variants, running dense search and
// BM25 per variant, then fuses the ranked lists with RRF. Dense hits are
// resolved to corpus positions via payload chunk_id with a content-match
// fallback.
func (e *Engine) hybridSearch(ctx context.Context, variants []string, queryVector []float32) ([]Candidate, error) {
	limit := e.config.TopK * 2

	var (
		mu          sync.Mutex
		denseLists  [][]search.Ranked
		sparseLists [][]search.Ranked
		denseScores = make(map[int]float64)
		searchErr   error
	)

	g, gctx := errgroup.WithContext(ctx)
	for i, variant := range variants {
		g.Go(func() error {
			vec := queryVector
			if i > 0 {
				var err error
				vec, err = e.embed.EmbedQuery(gctx, variant)
				if err != nil {
					slog.Warn("Variant embedding failed", "variant", variant, "error", err)
					return nil
				}
			}

			hits, err := DoWithResult(gctx, e.retryer, "dense search", func() ([]databases.SearchResult, error) {
				return e.vectors.Search(gctx, e.config.Collection, vec, limit, 0, nil)
			})

			var sparse []search.Ranked
			if e.bm25.Built() {
				sparse = search.TopPositive(e.bm25.Scores(variant), limit)
			}

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				slog.Warn("Dense search failed", "variant", variant, "error", err)
				searchErr = err
			} else if ranked := e.resolveDense(hits, denseScores); len(ranked) > 0 {
				denseLists = append(denseLists, ranked)
			}
			if len(sparse) > 0 {
				sparseLists = append(sparseLists, sparse)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	maxOut := e.config.TopK * 3

	switch {
	case len(denseLists) > 0 && len(sparseLists) > 0:
		fused := search.Fuse(append(denseLists, sparseLists...), search.DefaultRRFK, denseScores)
		if len(fused) > maxOut {
			fused = fused[:maxOut]
		}
		out := make([]Candidate, 0, len(fused))
		for _, r := range fused {
			c := e.store.At(r.Index)
			if c == nil {
				continue
			}
			score := denseScores[r.Index]
			if score == 0 {
				score = r.Score
			}
			out = append(out, Candidate{Chunk: c, Score: score, RRFScore: r.Score})
		}
		return out, nil

	case len(denseLists) > 0:
		out := make([]Candidate, 0, maxOut)
		seen := make(map[int]struct{})
		for _, list := range denseLists {
			for _, r := range list {
				if _, dup := seen[r.Index]; dup {
					continue
				}
				seen[r.Index] = struct{}{}
				out = append(out, Candidate{Chunk: e.store.At(r.Index), Score: denseScores[r.Index]})
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
		if len(out) > maxOut {
			out = out[:maxOut]
		}
		return out, nil

	default:
		if searchErr != nil {
			return nil, fmt.Errorf("hybrid search: %w", searchErr)
		}
		return nil, nil
	}
}

// resolveDense maps dense hits to corpus positions and records the best
// dense score per position.
func (e *Engine) resolveDense(hits []databases.SearchResult, denseScores map[int]float64) []search.Ranked {
	ranked := make([]search.Ranked, 0, len(hits))
	for _, hit := range hits {
		idx := -1
		if cid, ok := hit.Payload["chunk_id"].(string); ok {
			if i, found := e.idIndex[cid]; found {
				idx = i
			}
		}
		if idx < 0 {
			if content, ok := hit.Payload["content"].(string); ok && content != "" {
				if c, found := e.store.ByContent(content); found {
					idx = e.idIndex[c.CanonicalID()]
				}
			}
		}
		if idx < 0 {
			slog.Warn("Dense hit did not resolve to a known chunk", "point_id", hit.ID)
			continue
		}
		score := float64(hit.Score)
		ranked = append(ranked, search.Ranked{Index: idx, Score: score})
		if score > denseScores[idx] {
			denseScores[idx] = score
		}
	}
	return ranked
}

// deduplicate drops near-identical candidates by token-set Jaccard,
// keeping the first accepted of each cluster.
func (e *Engine) deduplicate(cands []Candidate) []Candidate {
	tokenSets := make([]map[string]struct{}, len(cands))
	for i, c := range cands {
		tokenSets[i] = vietnamese.TokenSet(c.Chunk.Content)
	}
	accepted := search.Deduplicate(tokenSets, e.config.DedupeThreshold)
	out := make([]Candidate, 0, len(accepted))
	for _, i := range accepted {
		out = append(out, cands[i])
	}
	return out
}

// gradeRerank refines the cross-encoder-absent ordering: the grader
// model scores each passage 0-10 and the result blends with the
// retrieval+metadata fallback score already on the candidate. Grading
// runs with bounded parallelism; failures keep the fallback score.
func (e *Engine) gradeRerank(ctx context.Context, queryText string, cands []Candidate) []Candidate {
	if e.grader == nil {
		return cands
	}
	out := make([]Candidate, len(cands))
	copy(out, cands)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.GraderParallelism)
	for i := range out {
		g.Go(func() error {
			var graded struct {
				Score  float64 `json:"score"`
				Reason string  `json:"reason"`
			}
			prompt := fmt.Sprintf(gradePrompt, queryText, truncateRunes(out[i].Chunk.Content, 500))
			err := e.grader.GenerateJSON(gctx, llm.Request{Prompt: prompt}, &graded)
			if err != nil {
				slog.Warn("Grader scoring failed", "error", err)
				return nil
			}
			out[i].RerankScore = 0.6*clamp01(graded.Score/10) + 0.4*out[i].RerankScore
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(out, func(i, j int) bool { return out[i].RerankScore > out[j].RerankScore })
	return out
}

func (e *Engine) generateAnswer(ctx context.Context, queryText, contextText, intent string) (string, error) {
	instruction, ok := intentInstructions[intent]
	if !ok {
		instruction = intentInstructions["general"]
	}
	prompt := fmt.Sprintf(answerPrompt, contextText, queryText, instruction)
	return e.generator.Generate(ctx, llm.Request{Prompt: prompt})
}

func formatSources(cands []Candidate) []Source {
	sources := make([]Source, 0, len(cands))
	for _, cand := range cands {
		c := cand.Chunk
		preview := c.Content
		if len([]rune(preview)) > 200 {
			preview = truncateRunes(preview, 200) + "..."
		}
		score := cand.Score
		if cand.RerankScore > 0 {
			score = cand.RerankScore
		}
		sources = append(sources, Source{
			ContentPreview: preview,
			Content:        c.Content,
			Score:          math.Round(score*1000) / 1000,
			LegalPath:      c.LegalPath(),
			Chapter:        c.Metadata.Chapter,
			Article:        c.Metadata.Article,
			Document:       c.Metadata.Source,
		})
	}
	return sources
}

func (e *Engine) emptyResult(queryText, intent string) *Result {
	slog.Warn("No relevant documents found", "query", queryText)
	return &Result{
		Query:   queryText,
		Answer:  emptyAnswer,
		Sources: []Source{},
		Intent:  intent,
	}
}
