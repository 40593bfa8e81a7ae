// Package router implements semantic intent classification: the query
// embedding is matched against pre-computed exemplar embeddings per route,
// nearest exemplar wins.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/nhdandz/TSBot/databases"
	"github.com/nhdandz/TSBot/embedder"
)

const (
	// DefaultThreshold is the confidence floor for a matched intent.
	DefaultThreshold = 0.85
	// BestOfFloor is the lower edge of the window in which the Supervisor
	// may still accept the top intent in best-of mode.
	BestOfFloor = 0.75

	// IntentUnknown is returned when no route clears the threshold.
	IntentUnknown = "unknown"
)

// Route is a named intent with its exemplar utterances.
type Route struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Examples    []string `json:"examples"`
}

// Result is a routing decision. AllScores is always populated so the
// Supervisor can fall back when Matched is false.
type Result struct {
	Intent     string
	Confidence float64
	AllScores  map[string]float64
	Matched    bool
}

// Config tunes the router.
type Config struct {
	Threshold  float64
	Collection string
	MirrorToDB bool
}

// Router classifies queries by nearest exemplar in embedding space.
type Router struct {
	routes    []Route
	config    Config
	embedder  embedder.Embedder
	store     databases.VectorStore
	mu        sync.RWMutex
	exemplars map[string][][]float32
}

// New creates a router over the given routes; nil or empty routes fall
// back to the default admission-chatbot set.
func New(routes []Route, emb embedder.Embedder, store databases.VectorStore, cfg Config) *Router {
	if len(routes) == 0 {
		routes = DefaultRoutes()
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Collection == "" {
		cfg.Collection = "intents"
	}
	return &Router{
		routes:   routes,
		config:   cfg,
		embedder: emb,
		store:    store,
	}
}

// Initialize embeds every exemplar and, when configured, mirrors them to
// the vector store. Must run before Route; embeddings live for the process
// lifetime.
func (r *Router) Initialize(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exemplars != nil {
		return nil
	}

	exemplars := make(map[string][][]float32, len(r.routes))
	for _, route := range r.routes {
		vectors, err := r.embedder.Embed(ctx, route.Examples)
		if err != nil {
			return fmt.Errorf("failed to embed examples for route %s: %w", route.Name, err)
		}
		exemplars[route.Name] = vectors
	}
	r.exemplars = exemplars

	if r.config.MirrorToDB && r.store != nil {
		if err := r.indexRoutes(ctx); err != nil {
			slog.Warn("Failed to index routes in vector store", "error", err)
		}
	}

	slog.Info("Semantic router initialized", "routes", len(r.routes))
	return nil
}

// indexRoutes mirrors exemplars into the intents collection, re-indexing
// when the stored count no longer matches the route set.
func (r *Router) indexRoutes(ctx context.Context) error {
	dim := uint64(r.embedder.Dimension())
	if err := r.store.CreateCollection(ctx, r.config.Collection, dim); err != nil {
		return err
	}

	expected := 0
	for _, route := range r.routes {
		expected += len(route.Examples)
	}
	count, err := r.store.Count(ctx, r.config.Collection)
	if err != nil {
		return err
	}
	if count == uint64(expected) {
		slog.Info("Routes already indexed", "count", count)
		return nil
	}
	if count > 0 {
		slog.Info("Route count mismatch, re-indexing", "cached", count, "expected", expected)
		if err := r.store.DeleteByFilter(ctx, r.config.Collection, &databases.Filter{}); err != nil {
			return err
		}
	}

	var points []databases.Point
	for _, route := range r.routes {
		vectors := r.exemplars[route.Name]
		for i, example := range route.Examples {
			points = append(points, databases.Point{
				ID:     fmt.Sprintf("%s-%d", route.Name, i),
				Vector: vectors[i],
				Payload: map[string]any{
					"route":       route.Name,
					"example":     example,
					"description": route.Description,
				},
			})
		}
	}
	if err := r.store.Upsert(ctx, r.config.Collection, points); err != nil {
		return err
	}
	slog.Info("Indexed route examples", "count", len(points))
	return nil
}

// Route classifies a query. When the best score misses the threshold the
// intent is "unknown" with Matched false and per-route scores exposed.
func (r *Router) Route(ctx context.Context, query string) (*Result, error) {
	r.mu.RLock()
	exemplars := r.exemplars
	r.mu.RUnlock()
	if exemplars == nil {
		if err := r.Initialize(ctx); err != nil {
			return nil, err
		}
		r.mu.RLock()
		exemplars = r.exemplars
		r.mu.RUnlock()
	}

	queryVec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	best := ""
	bestScore := 0.0
	allScores := make(map[string]float64, len(exemplars))
	for name, vectors := range exemplars {
		maxSim := 0.0
		for _, v := range vectors {
			if sim := embedder.Dot(queryVec, v); sim > maxSim {
				maxSim = sim
			}
		}
		allScores[name] = maxSim
		if maxSim > bestScore {
			bestScore = maxSim
			best = name
		}
	}

	if bestScore < r.config.Threshold {
		return &Result{
			Intent:     IntentUnknown,
			Confidence: bestScore,
			AllScores:  allScores,
			Matched:    false,
		}, nil
	}
	return &Result{
		Intent:     best,
		Confidence: bestScore,
		AllScores:  allScores,
		Matched:    true,
	}, nil
}

// BestOf returns the top intent and score from a score map, for accepting
// near-threshold decisions.
func BestOf(scores map[string]float64) (string, float64) {
	best := ""
	bestScore := 0.0
	for name, s := range scores {
		if s > bestScore {
			bestScore = s
			best = name
		}
	}
	return best, bestScore
}

type intentsFile struct {
	Intents []Route `json:"intents"`
}

// LoadRoutesFile reads routes from an intents JSON file. A missing file is
// not an error; callers fall back to the defaults.
func LoadRoutesFile(path string) ([]Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read intents file: %w", err)
	}
	var f intentsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse intents file: %w", err)
	}
	return f.Intents, nil
}
