package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaConfig configures an Ollama generation provider.
type OllamaConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	TopP        float64       `yaml:"top_p"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// SetDefaults fills missing settings.
func (c *OllamaConfig) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:11434"
	}
	if c.Model == "" {
		c.Model = "qwen2.5:7b-instruct"
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
}

// OllamaLLM calls Ollama's /api/generate endpoint in non-streaming mode.
type OllamaLLM struct {
	config OllamaConfig
	client *http.Client
}

var _ LLM = (*OllamaLLM)(nil)

// NewOllamaLLM creates the provider.
func NewOllamaLLM(cfg OllamaConfig) *OllamaLLM {
	cfg.SetDefaults()
	return &OllamaLLM{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (o *OllamaLLM) call(ctx context.Context, req Request, format string) (string, error) {
	options := map[string]any{
		"temperature": o.effectiveTemperature(req),
	}
	if topP := o.effectiveTopP(req); topP > 0 {
		options["top_p"] = topP
	}
	if max := o.effectiveMaxTokens(req); max > 0 {
		options["num_predict"] = max
	}

	payload := ollamaGenerateRequest{
		Model:   o.config.Model,
		Prompt:  req.Prompt,
		System:  req.System,
		Stream:  false,
		Format:  format,
		Options: options,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.config.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("generate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(data))
	}

	var out ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode generate response: %w", err)
	}
	return out.Response, nil
}

// Generate returns a plain-text completion.
func (o *OllamaLLM) Generate(ctx context.Context, req Request) (string, error) {
	return o.call(ctx, req, "")
}

// GenerateJSON requests JSON-formatted output and decodes it.
func (o *OllamaLLM) GenerateJSON(ctx context.Context, req Request, out any) error {
	response, err := o.call(ctx, req, "json")
	if err != nil {
		return err
	}
	return DecodeLoose(response, out)
}

// Model returns the model name.
func (o *OllamaLLM) Model() string { return o.config.Model }

// Close is a no-op for the HTTP client.
func (o *OllamaLLM) Close() error { return nil }

func (o *OllamaLLM) effectiveTemperature(req Request) float64 {
	if req.Temperature > 0 {
		return req.Temperature
	}
	return o.config.Temperature
}

func (o *OllamaLLM) effectiveTopP(req Request) float64 {
	if req.TopP > 0 {
		return req.TopP
	}
	return o.config.TopP
}

func (o *OllamaLLM) effectiveMaxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return o.config.MaxTokens
}
