package shellmind

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

// HTTPGenerator implements Generator against an OpenAI-compatible chat
// completion endpoint, the shape llama.cpp's own server mode exposes.
// It replaces server/llama_server.py's direct llama-cpp-python
// embedding: there is no pure-Go llama.cpp binding in this project's
// dependency set, and the spec's own design notes tie the core only to
// the generation *contract*, not a runtime, so a process boundary
// (HTTP) is a legitimate substitute for the in-process binding (§4.4.4,
// §9).
type HTTPGenerator struct {
	client  *http.Client
	baseURL string
}

// NewHTTPGenerator targets baseURL, e.g. "http://127.0.0.1:8081".
func NewHTTPGenerator(baseURL string) *HTTPGenerator {
	return &HTTPGenerator{
		client:  &http.Client{Timeout: 120 * time.Second},
		baseURL: baseURL,
	}
}

type chatCompletionRequest struct {
	Messages    []ChatMessage   `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	TopK        *int            `json:"top_k,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	Seed        *int            `json:"seed,omitempty"`
	JSONSchema  *jsonschema.Schema `json:"json_schema,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate implements Generator by POSTing to {baseURL}/v1/chat/completions.
func (g *HTTPGenerator) Generate(ctx context.Context, messages []ChatMessage, schema *jsonschema.Schema, config *GenerationConfig) (string, error) {
	req := chatCompletionRequest{Messages: messages, JSONSchema: schema}
	if config != nil {
		req.Temperature = config.Temperature
		req.TopP = config.TopP
		req.TopK = config.TopK
		req.MaxTokens = config.MaxTokens
		req.Seed = config.Seed
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat completion request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat completion response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat completion returned %s: %s", resp.Status, data)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decode chat completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
