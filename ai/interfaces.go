package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity
// search. Implementations must be safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates embeddings for multiple texts in a batch.
	// The result preserves order and has one vector per input text.
	// An empty input yields an empty result without a backend call.
	// Empty input strings are embedded as a single-space placeholder so
	// every output vector has the same dimensionality.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the length of vectors produced by this embedder.
	Dimension() int
}
