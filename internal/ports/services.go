package ports

import (
	"context"
)

// GenerationResult is the payload of one successful generative-text call.
type GenerationResult struct {
	Text       string
	Model      string
	TokensUsed int
}

// TextGenerator is the single-turn completion capability the invoker
// consumes. The engine treats it as a capability, not a vendor: any
// backend offering text completion qualifies.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (*GenerationResult, error)
}

// EmbeddingService produces vector embeddings for session prompts.
// Similarity search is skipped when no embedding backend is configured.
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// IDGenerator mints unique identifiers for new sessions.
type IDGenerator interface {
	NewSessionID() string
}
