// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pdiddy/arxiv-digest/internal/httputil"
	"github.com/pdiddy/arxiv-digest/pkg/types"
)

// openaiAPIBase is the chat completions endpoint. Package-level var for
// test substitution; BaseURL in the config overrides it for
// OpenAI-compatible gateways.
var openaiAPIBase = "https://api.openai.com/v1/chat/completions"

// OpenAIProvider calls an OpenAI-compatible chat completions API.
type OpenAIProvider struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
	Retry   types.RetryPolicy
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string { return "openai" }

type openaiRequest struct {
	Model       string          `json:"model"`
	Temperature float64         `json:"temperature"`
	Messages    []openaiMessage `json:"messages"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one prompt and returns the response text.
func (p *OpenAIProvider) Complete(ctx context.Context, model, system, user string, temperature float64) (string, error) {
	body, err := json.Marshal(openaiRequest{
		Model:       model,
		Temperature: temperature,
		Messages: []openaiMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := p.BaseURL
	if url == "" {
		url = openaiAPIBase
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, p.Retry)
	if err != nil {
		return "", fmt.Errorf("calling chat API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("chat API returned %d: %s", resp.StatusCode, string(b))
	}

	var oResp openaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&oResp); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	if len(oResp.Choices) == 0 {
		return "", fmt.Errorf("empty chat API response")
	}
	return oResp.Choices[0].Message.Content, nil
}

// NewProvider builds the configured provider from the LLM config and
// loaded secrets.
func NewProvider(cfg types.LLMConfig, apiKey string) (Provider, error) {
	client := &http.Client{Timeout: 120 * time.Second}
	switch cfg.Provider {
	case "claude", "":
		return &ClaudeProvider{APIKey: apiKey, BaseURL: cfg.BaseURL, Client: client, Retry: cfg.Retry}, nil
	case "openai":
		return &OpenAIProvider{APIKey: apiKey, BaseURL: cfg.BaseURL, Client: client, Retry: cfg.Retry}, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q (valid: claude, openai)", cfg.Provider)
	}
}
