// Package llm provides LLM and embedding integration for analysis planning,
// insight generation, clustering, sentiment, routing, memory summarization,
// and tagging prompts. It includes strict JSON-only prompt templates,
// response parsers that tolerate markdown-wrapped output, a circuit breaker
// around every provider call, and an ordered multi-provider fallback chain.
package llm

import "context"

// TextGenerator is the interface for LLM text completion.
// All analysis prompts use a single system + user completion turn.
type TextGenerator interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	GetModel() string
}

// EmbeddingGenerator is the interface for generating vector embeddings.
// Returns float32 slice; callers convert to float64 where storage needs it.
type EmbeddingGenerator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GetModel() string
}
