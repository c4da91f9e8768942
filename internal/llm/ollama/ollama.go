// Package ollama implements the llm capabilities against a local
// Ollama instance.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rfp-ai/server/internal/llm"
)

// Client wraps Ollama API interactions. It implements both
// llm.Embedder and llm.Generator.
type Client struct {
	baseURL    string
	chatModel  string
	embedModel string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new Ollama client.
func NewClient(baseURL, chatModel, embedModel string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if embedModel == "" {
		embedModel = "nomic-embed-text"
	}
	c := &Client{
		baseURL:    baseURL,
		chatModel:  chatModel,
		embedModel: embedModel,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // generation requests can be slow
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the embedding model identifier.
func (c *Client) Model() string {
	return c.embedModel
}

// Embed generates an embedding for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	payload := map[string]any{
		"model":  c.embedModel,
		"prompt": text,
	}

	resp, err := c.post(ctx, "/api/embeddings", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}
	return result.Embedding, nil
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate performs single-turn generation with an optional system prompt.
func (c *Client) Generate(ctx context.Context, prompt, system string) (string, error) {
	payload := map[string]any{
		"model":  c.chatModel,
		"prompt": prompt,
		"stream": false,
	}
	if system != "" {
		payload["system"] = system
	}

	resp, err := c.post(ctx, "/api/generate", payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	// Ollama may still chunk the body; accumulate until done.
	var result strings.Builder
	decoder := json.NewDecoder(resp.Body)
	for {
		var genResp generateResponse
		if err := decoder.Decode(&genResp); err != nil {
			if err == io.EOF {
				break
			}
			return "", fmt.Errorf("failed to decode response: %w", err)
		}
		result.WriteString(genResp.Response)
		if genResp.Done {
			break
		}
	}

	return result.String(), nil
}

type chatResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// Chat performs multi-turn generation over the supplied messages.
func (c *Client) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	payload := map[string]any{
		"model":    c.chatModel,
		"messages": messages,
		"stream":   false,
	}

	resp, err := c.post(ctx, "/api/chat", payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result strings.Builder
	decoder := json.NewDecoder(resp.Body)
	for {
		var chatResp chatResponse
		if err := decoder.Decode(&chatResp); err != nil {
			if err == io.EOF {
				break
			}
			return "", fmt.Errorf("failed to decode response: %w", err)
		}
		result.WriteString(chatResp.Message.Content)
		if chatResp.Done {
			break
		}
	}

	return result.String(), nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("ollama API error: %d - %s", resp.StatusCode, string(body))
	}
	return resp, nil
}
