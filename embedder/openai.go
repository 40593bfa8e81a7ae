package embedder

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the OpenAI-compatible embedding provider. BaseURL
// may point at any server speaking the OpenAI embeddings API, which is how
// the Vietnamese embedding model is served in production.
type OpenAIConfig struct {
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

// SetDefaults fills missing settings.
func (c *OpenAIConfig) SetDefaults() {
	if c.Model == "" {
		c.Model = "AITeamVN/Vietnamese_Embedding"
	}
	if c.Dimension == 0 {
		c.Dimension = 1024
	}
}

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	config OpenAIConfig
	client *openai.Client
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates the provider.
func NewOpenAIEmbedder(cfg OpenAIConfig) *OpenAIEmbedder {
	cfg.SetDefaults()
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIEmbedder{
		config: cfg,
		client: openai.NewClientWithConfig(clientCfg),
	}
}

// Embed encodes a batch of texts.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.config.Model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d inputs", len(resp.Data), len(texts))
	}
	vectors := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		vectors[d.Index] = Normalize(d.Embedding)
	}
	return vectors, nil
}

// EmbedQuery encodes a single text.
func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return vectors[0], nil
}

// Dimension returns the configured vector dimension.
func (e *OpenAIEmbedder) Dimension() int { return e.config.Dimension }

// Close is a no-op.
func (e *OpenAIEmbedder) Close() error { return nil }
