// Package ollama is a minimal client for a local Ollama instance. It
// backs the router's intent classifier, the conversational handlers,
// and the parking queue's background research.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client generates text via the Ollama HTTP API
type Client struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewClient creates a client for the given model
func NewClient(baseURL, model string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "qwen2.5:7b"
	}
	return &Client{
		baseURL: baseURL,
		model:   model,
		client: &http.Client{
			Timeout: 120 * time.Second, // generation can take a while
		},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate runs one non-streaming completion
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/generate", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return "", fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("ollama decode: %w", err)
	}
	return result.Response, nil
}

// Searcher adapts a Client to the parking queue's search contract
type Searcher struct {
	client *Client
}

// NewSearcher wraps a client for background research
func NewSearcher(client *Client) *Searcher {
	return &Searcher{client: client}
}

const searchPrompt = `You are a background research assistant. The user parked
the following thought or question while focusing on something else.
Give a concise, useful answer or summary (a few sentences). If it is a
URL, summarize what is behind it from what you know. If you cannot help,
say so briefly.

Parked thought:
%s`

// Search researches one parked query and returns a short summary
func (s *Searcher) Search(ctx context.Context, query string) (string, error) {
	return s.client.Generate(ctx, fmt.Sprintf(searchPrompt, query))
}
