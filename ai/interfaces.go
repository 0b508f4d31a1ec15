package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector has exactly the configured dimensionality.
	// Returns ErrDimensionMismatch if the provider responds with a vector
	// of a different length, or an error if generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// TextGenerator produces text from a natural-language instruction and a user
// message. It backs the query processor and the summary writer.
// Implementations must be thread-safe for concurrent use.
type TextGenerator interface {
	// GenerateText sends the instruction and message to a text-generation
	// provider and returns the generated text, trimmed of surrounding
	// whitespace. Returns an error on provider failure or timeout; callers
	// decide whether to degrade or count the item as failed.
	GenerateText(ctx context.Context, instruction, message string) (string, error)
}

// Provider aggregates AI services for convenient initialization and lifecycle
// management. A provider creates and manages Embedder and TextGenerator
// instances, ensuring they share configuration and resources appropriately.
type Provider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// TextGenerator returns the text generation service.
	// The returned TextGenerator is safe for concurrent use.
	TextGenerator() TextGenerator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
