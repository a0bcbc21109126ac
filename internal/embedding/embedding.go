// Package embedding defines the external embedding-service collaborator
// interface the Graph Importer calls for every node lacking SkipEmbedding
// (§4.8, §3.3 invariant 6).
package embedding

import "context"

// Service embeds a batch of texts into fixed-dimension vectors.
type Service interface {
	// Embed returns one vector per input text, in order. A returned error
	// is never swallowed by the importer (§7 "Embedding error").
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension reports the fixed vector width this service produces, used
	// to validate against the configured store vector index dimension.
	Dimension() int
}

// Disabled is a no-op Service used when embeddings are explicitly turned
// off (§7 "embeddings-disabled mode must be explicit"): it returns a nil
// vector for every input rather than erroring, so callers can distinguish
// "disabled" from "failed".
type Disabled struct{}

func (Disabled) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)), nil
}

func (Disabled) Dimension() int { return 0 }
