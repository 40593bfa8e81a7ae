package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAI-compatible chat provider.
type OpenAIConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// SetDefaults fills missing settings.
func (c *OpenAIConfig) SetDefaults() {
	if c.Model == "" {
		c.Model = openai.GPT4oMini
	}
}

// OpenAILLM calls the chat completions API.
type OpenAILLM struct {
	config OpenAIConfig
	client *openai.Client
}

var _ LLM = (*OpenAILLM)(nil)

// NewOpenAILLM creates the provider.
func NewOpenAILLM(cfg OpenAIConfig) *OpenAILLM {
	cfg.SetDefaults()
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAILLM{
		config: cfg,
		client: openai.NewClientWithConfig(clientCfg),
	}
}

func (o *OpenAILLM) call(ctx context.Context, req Request, jsonMode bool) (string, error) {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:       o.config.Model,
		Messages:    messages,
		Temperature: float32(o.effectiveTemperature(req)),
	}
	if max := o.effectiveMaxTokens(req); max > 0 {
		chatReq.MaxTokens = max
	}
	if jsonMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := o.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Generate returns a plain-text completion.
func (o *OpenAILLM) Generate(ctx context.Context, req Request) (string, error) {
	return o.call(ctx, req, false)
}

// GenerateJSON requests a JSON object response and decodes it.
func (o *OpenAILLM) GenerateJSON(ctx context.Context, req Request, out any) error {
	response, err := o.call(ctx, req, true)
	if err != nil {
		return err
	}
	return DecodeLoose(response, out)
}

// Model returns the model name.
func (o *OpenAILLM) Model() string { return o.config.Model }

// Close is a no-op.
func (o *OpenAILLM) Close() error { return nil }

func (o *OpenAILLM) effectiveTemperature(req Request) float64 {
	if req.Temperature > 0 {
		return req.Temperature
	}
	return o.config.Temperature
}

func (o *OpenAILLM) effectiveMaxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return o.config.MaxTokens
}
