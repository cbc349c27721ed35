// Package rag defines the retrieval side of the chat pipeline: the passage
// type handed to the prompt assembler, the Embedder and Retriever contracts,
// and the search backends that satisfy them (Azure AI Search hybrid queries
// and a Qdrant vector collection).
package rag

import (
	"context"
)

// DefaultTopK is the number of passages retrieved per turn when the caller
// does not configure one.
const DefaultTopK = 3

// Passage is one retrieved document chunk. Both fields are always set;
// fields missing from the search response are defaulted to "" at the
// backend boundary.
type Passage struct {
	// Content is the chunk text.
	Content string `json:"content"`
	// SourceLabel identifies where the chunk came from (the index's
	// "sourcepage" field, e.g. "policy.pdf#2").
	SourceLabel string `json:"sourcepage"`
}

// Embedder converts a single query text into a dense vector.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed returns the embedding for text.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever runs one ranked search for the current turn.
// Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	// Retrieve returns at most topK passages, best match first. query is the
	// raw user utterance used for lexical/semantic ranking and vector is its
	// embedding. An empty result is not an error.
	Retrieve(ctx context.Context, query string, vector []float32, topK int) ([]Passage, error)
}

// truncate caps passages at topK. A non-positive topK leaves the slice as is.
func truncate(passages []Passage, topK int) []Passage {
	if topK > 0 && len(passages) > topK {
		return passages[:topK]
	}
	return passages
}
