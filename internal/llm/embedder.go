// Package llm provides text embedding for the similarity index.
//
// The embedding model is treated as an opaque oracle: given a text it
// returns a fixed-length vector, deterministic for a given model
// identifier. The concrete implementation talks to an OpenAI-compatible
// embeddings endpoint.
package llm

import "context"

// Embedder embeds text into vector representations.
type Embedder interface {
	// EmbedText embeds a single text.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds several texts in one upstream call, preserving
	// input order. Batching amortizes per-request model overhead, which
	// is why the indexer stages records before embedding.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
