package domain

import "errors"

// Common domain errors
var (
	// Session errors
	ErrSessionNotFound   = errors.New("session not found")
	ErrEmptyPrompt       = errors.New("task prompt cannot be empty")
	ErrInvalidIterations = errors.New("iteration count must be at least 1")
	ErrEmptyBatch        = errors.New("batch contains no prompts")

	// Iteration errors
	ErrEmptySolution = errors.New("empty solution text from generation call")
	ErrEmptyCritique = errors.New("empty critique text from generation call")

	// Generation service errors
	ErrEmptyResponse      = errors.New("empty response from generation service")
	ErrServiceUnavailable = errors.New("generation service unavailable")

	// Template errors
	ErrTemplateEmpty = errors.New("template is empty after trimming")

	// Embedding errors
	ErrEmbeddingsFailed  = errors.New("failed to generate embeddings")
	ErrSearchUnavailable = errors.New("similarity search requires an embedding backend and a database store")

	// Storage errors
	ErrNotFound = errors.New("resource not found")
)
