package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"
)

// CrossEncoder scores query/passage pairs. Raw scores follow the model's
// logit scale, typically [-10, 10]; the reranker normalizes them.
type CrossEncoder interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
	Close() error
}

// HTTPCrossEncoderConfig configures the rerank service client.
type HTTPCrossEncoderConfig struct {
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// SetDefaults fills missing settings.
func (c *HTTPCrossEncoderConfig) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8080"
	}
	if c.Model == "" {
		c.Model = "namdp-ptit/ViRanker"
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

// HTTPCrossEncoder calls a text-embeddings-inference style /rerank
// endpoint serving the cross-encoder model.
type HTTPCrossEncoder struct {
	config HTTPCrossEncoderConfig
	client *http.Client
}

var _ CrossEncoder = (*HTTPCrossEncoder)(nil)

// NewHTTPCrossEncoder creates the client.
func NewHTTPCrossEncoder(cfg HTTPCrossEncoderConfig) *HTTPCrossEncoder {
	cfg.SetDefaults()
	return &HTTPCrossEncoder{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

type rerankEntry struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Score returns one score per text, aligned with the input order.
func (e *HTTPCrossEncoder) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(rerankRequest{Query: query, Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.BaseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rerank error (status %d): %s", resp.StatusCode, string(data))
	}

	var entries []rerankEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}
	if len(entries) != len(texts) {
		return nil, fmt.Errorf("rerank returned %d scores for %d inputs", len(entries), len(texts))
	}

	// The service returns entries sorted by score; restore input order.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Index < entries[j].Index })
	scores := make([]float64, len(entries))
	for _, entry := range entries {
		if entry.Index < 0 || entry.Index >= len(scores) {
			return nil, fmt.Errorf("rerank returned out-of-range index %d", entry.Index)
		}
		scores[entry.Index] = entry.Score
	}
	return scores, nil
}

// Close is a no-op for the HTTP client.
func (e *HTTPCrossEncoder) Close() error { return nil }
