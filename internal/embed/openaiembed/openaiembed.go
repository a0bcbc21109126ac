// Package openaiembed is the reference embedding.Service adapter backed by
// github.com/sashabaranov/go-openai, mirroring the example corpus's
// thin-wrapper-around-openai.Client pattern.
package openaiembed

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/standardbeagle/graphindex/internal/debug"
	graphindexerrors "github.com/standardbeagle/graphindex/internal/errors"
)

var log = debug.Component("openaiembed")

// dimension is fixed by the text-embedding-3-large model, matching the
// store's default vector index dimension (§4.8, §6.5).
const dimension = 3072

// Service wraps an openai.Client configured for text-embedding-3-large.
type Service struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func New(apiKey string) *Service {
	return &Service{client: openai.NewClient(apiKey), model: openai.LargeEmbedding3}
}

func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: s.model,
	})
	if err != nil {
		return nil, graphindexerrors.NewEmbeddingError(len(texts), fmt.Errorf("openai embeddings request failed: %w", err))
	}
	if len(resp.Data) != len(texts) {
		return nil, graphindexerrors.NewEmbeddingError(len(texts), fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts)))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		out[d.Index] = d.Embedding
	}

	log.WithField("count", len(texts)).Debug("embedded batch")
	return out, nil
}

func (s *Service) Dimension() int { return dimension }
