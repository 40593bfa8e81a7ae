// Package cache implements the answer-level semantic cache: hits are keyed
// by cosine similarity between query embeddings, not string equality, with
// a TTL and a bounded entry count. An exact-match LRU sits in front so
// repeated identical questions skip the similarity scan entirely.
package cache

import (
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/nhdandz/TSBot/embedder"
)

const (
	// DefaultThreshold is the cosine floor for a semantic hit.
	DefaultThreshold = 0.92
	// DefaultTTL is how long entries stay valid.
	DefaultTTL = 24 * time.Hour
	// DefaultMaxEntries caps the semantic list; the oldest entry is
	// evicted when full.
	DefaultMaxEntries = 200
	// sweepSize triggers a full expiry sweep during lookup.
	sweepSize = 1000
)

// Entry is one cached answer.
type Entry struct {
	QueryText   string
	QueryVector []float32
	Response    any
	CreatedAt   time.Time
}

// Hit describes a successful lookup.
type Hit struct {
	Response      any
	Similarity    float64
	OriginalQuery string
}

// Config tunes the cache.
type Config struct {
	Threshold  float64
	TTL        time.Duration
	MaxEntries int
}

// SetDefaults fills missing settings.
func (c *Config) SetDefaults() {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = DefaultMaxEntries
	}
}

// Semantic is the cache. Lookup and insert share one mutex; evictions are
// O(1) at the head.
type Semantic struct {
	config Config
	mu     sync.Mutex
	items  []Entry
	exact  *lru.LRU[string, any]
	now    func() time.Time
}

// New creates a semantic cache.
func New(cfg Config) *Semantic {
	cfg.SetDefaults()
	return &Semantic{
		config: cfg,
		exact:  lru.NewLRU[string, any](cfg.MaxEntries, nil, cfg.TTL),
		now:    time.Now,
	}
}

// Lookup returns the best cached answer whose query vector is within the
// similarity threshold, or nil on a miss. Expired entries encountered on
// the way are dropped lazily; oversized caches are swept in full.
func (s *Semantic) Lookup(queryText string, queryVector []float32) *Hit {
	s.mu.Lock()
	defer s.mu.Unlock()

	if resp, ok := s.exact.Get(queryText); ok {
		return &Hit{Response: resp, Similarity: 1, OriginalQuery: queryText}
	}

	now := s.now()
	if len(s.items) > sweepSize {
		s.sweepLocked(now)
	}

	bestIdx := -1
	bestSim := 0.0
	kept := s.items[:0]
	for _, e := range s.items {
		if now.Sub(e.CreatedAt) > s.config.TTL {
			continue
		}
		kept = append(kept, e)
		sim := embedder.Dot(queryVector, e.QueryVector)
		if sim > bestSim {
			bestSim = sim
			bestIdx = len(kept) - 1
		}
	}
	s.items = kept

	if bestIdx >= 0 && bestSim >= s.config.Threshold {
		e := s.items[bestIdx]
		slog.Debug("Semantic cache hit", "similarity", bestSim, "original_query", e.QueryText)
		return &Hit{
			Response:      e.Response,
			Similarity:    bestSim,
			OriginalQuery: e.QueryText,
		}
	}
	return nil
}

// Put stores an answer. When the cache is full the oldest entry is
// evicted first.
func (s *Semantic) Put(queryText string, queryVector []float32, response any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.exact.Add(queryText, response)

	if len(s.items) >= s.config.MaxEntries {
		s.items = s.items[1:]
	}
	s.items = append(s.items, Entry{
		QueryText:   queryText,
		QueryVector: queryVector,
		Response:    response,
		CreatedAt:   s.now(),
	})
}

// Len returns the number of semantic entries, expired included.
func (s *Semantic) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Semantic) sweepLocked(now time.Time) {
	kept := s.items[:0]
	for _, e := range s.items {
		if now.Sub(e.CreatedAt) <= s.config.TTL {
			kept = append(kept, e)
		}
	}
	slog.Info("Semantic cache sweep", "before", len(s.items), "after", len(kept))
	s.items = kept
}
