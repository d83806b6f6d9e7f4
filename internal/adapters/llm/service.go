package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/longregen/refinery/internal/ports"
)

const (
	// DefaultTimeout is the maximum time to wait for one LLM response
	DefaultTimeout = 2 * time.Minute
)

// Service implements ports.TextGenerator using the OpenAI-compatible client
type Service struct {
	client  *Client
	timeout time.Duration
}

// NewService creates a new LLM service
func NewService(client *Client, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{
		client:  client,
		timeout: timeout,
	}
}

// Generate sends the prompt as a single user turn and returns the raw
// completion text. It reports transport and protocol failures; judging
// whether the text itself is usable is left to the caller.
func (s *Service) Generate(ctx context.Context, prompt string) (*ports.GenerationResult, error) {
	// Add timeout to prevent hanging on slow/failed LLM requests
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	response, err := s.client.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	model := response.Model
	if model == "" {
		model = s.client.Model()
	}

	return &ports.GenerationResult{
		Text:       response.Choices[0].Message.Content,
		Model:      model,
		TokensUsed: response.Usage.TotalTokens,
	}, nil
}
