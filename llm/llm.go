// Package llm defines the generation contract used by every engine: plain
// text generation and a JSON mode, with a smaller grader variant selected
// by configuration.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Request carries one generation call.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// LLM is the generation contract. Both calls honour context cancellation.
type LLM interface {
	// Generate returns the model's plain-text completion.
	Generate(ctx context.Context, req Request) (string, error)

	// GenerateJSON asks for a JSON response and decodes it into out.
	GenerateJSON(ctx context.Context, req Request, out any) error

	// Model returns the model name.
	Model() string

	// Close releases resources.
	Close() error
}

// DecodeLoose decodes JSON from a model response, tolerating prose around
// the value: a direct parse is tried first, then the outermost object or
// array substring.
func DecodeLoose(response string, out any) error {
	trimmed := strings.TrimSpace(response)
	if err := json.Unmarshal([]byte(trimmed), out); err == nil {
		return nil
	}
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(trimmed, pair[0])
		end := strings.LastIndex(trimmed, pair[1])
		if start == -1 || end == -1 || start >= end {
			continue
		}
		if err := json.Unmarshal([]byte(trimmed[start:end+1]), out); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no JSON value found in response")
}
