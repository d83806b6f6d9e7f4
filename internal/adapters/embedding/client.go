package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/longregen/refinery/internal/adapters/retry"
	"github.com/longregen/refinery/internal/domain"
	"github.com/longregen/refinery/internal/ports"
)

// DefaultTimeout bounds one embeddings request.
const DefaultTimeout = 30 * time.Second

// Five straight failures disable the backend for thirty seconds.
const (
	breakerFailures = 5
	breakerCooldown = 30 * time.Second
)

// ClientConfig holds the connection settings for the OpenAI-compatible
// embeddings endpoint.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	Timeout    time.Duration
	Retry      retry.Policy
}

// Client is an OpenAI-compatible embeddings client. Embeddings enrich
// stored sessions but are never required for a run to succeed, so the
// client trades completeness for containment: failed calls are retried
// a few times, and a backend that keeps failing is disabled for a
// cooldown instead of slowing every session save.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	httpClient *http.Client
	policy     retry.Policy
	breaker    *circuitBreaker
}

var _ ports.EmbeddingService = (*Client)(nil)

// NewClient creates a new embeddings client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/v1")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	policy := cfg.Retry
	if policy.Validate() != nil {
		policy = retry.DefaultPolicy()
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		policy:  policy,
		breaker: newCircuitBreaker(breakerFailures, breakerCooldown),
	}
}

// Dimensions returns the configured embedding width.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// embeddingRequest represents the request to the embeddings API
type embeddingRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

// embeddingResponse represents the response from the embeddings API
type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// Embed returns the embedding vector for one text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := c.breaker.call(func() error {
		v, err := c.embed(ctx, text)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingsFailed, err)
	}
	return vec, nil
}

func (c *Client) embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{Input: text, Model: c.model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var vec []float32
	err = retry.Do(ctx, c.policy, func() error {
		v, err := c.post(ctx, body)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

func (c *Client) post(ctx context.Context, body []byte) ([]float32, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: %s - %s", resp.Status, string(respBody))
	}

	var response embeddingResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(response.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	embedding := response.Data[0].Embedding
	if c.dimensions > 0 && len(embedding) != c.dimensions {
		return nil, fmt.Errorf("expected %d dimensions but got %d", c.dimensions, len(embedding))
	}
	return embedding, nil
}
