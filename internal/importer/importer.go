// Package importer implements the Graph Importer (§4.8): batched node/edge
// writes into the external graph store, with code-body embedding and
// retried transient-store failures.
package importer

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/standardbeagle/graphindex/internal/debug"
	graphindexerrors "github.com/standardbeagle/graphindex/internal/errors"
	"github.com/standardbeagle/graphindex/internal/embedding"
	"github.com/standardbeagle/graphindex/internal/graphstore"
	"github.com/standardbeagle/graphindex/internal/types"
)

var log = debug.Component("importer")

// Options configures retry/backoff and embedding batching (mirrored from
// config.Store/config.Embedding).
type Options struct {
	BatchSize       int
	CharBudget      int // default 30000
	EmbedBatchSize  int // default 64
	RetryBaseMs     int
	RetryCapMs      int
	RetryMax        int
	VectorDimension int
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 500
	}
	if o.CharBudget <= 0 {
		o.CharBudget = 30000
	}
	if o.EmbedBatchSize <= 0 {
		o.EmbedBatchSize = 64
	}
	if o.RetryBaseMs <= 0 {
		o.RetryBaseMs = 1000
	}
	if o.RetryCapMs <= 0 {
		o.RetryCapMs = 30000
	}
	if o.RetryMax <= 0 {
		o.RetryMax = 3
	}
	if o.VectorDimension <= 0 {
		o.VectorDimension = 3072
	}
	return o
}

// Importer writes parsed nodes/edges into a graphstore.Store, embedding node
// bodies through an embedding.Service first.
type Importer struct {
	Store     graphstore.Store
	Embedder  embedding.Service
	Options   Options
}

func New(store graphstore.Store, embedder embedding.Service, opts Options) *Importer {
	if embedder == nil {
		embedder = embedding.Disabled{}
	}
	return &Importer{Store: store, Embedder: embedder, Options: opts.withDefaults()}
}

// EnsureIndexes runs createProjectIndexes (§4.8).
func (imp *Importer) EnsureIndexes(ctx context.Context) error {
	return imp.Store.EnsureIndexes(ctx, imp.Options.VectorDimension)
}

// ClearProject runs clearProject (§4.8).
func (imp *Importer) ClearProject(ctx context.Context, projectID types.ProjectID) error {
	return withRetry(ctx, imp.Options, "clearProject", func() error {
		return imp.Store.ClearProject(ctx, projectID)
	})
}

// embeddingInput builds the embedding text for one node: name + labels
// prefix so short symbolic queries can hit it, truncated at CharBudget
// (§4.8 "Embedding input is truncated ... and prefixed with the node name
// and labels").
func (imp *Importer) embeddingInput(n types.Node) string {
	prefix := fmt.Sprintf("%s %s\n", n.PrimaryLabel(), n.Name)
	budget := imp.Options.CharBudget - len(prefix)
	body := n.Body
	if budget < 0 {
		budget = 0
	}
	if len(body) > budget {
		body = body[:budget]
	}
	return prefix + body
}

// WriteNodeBatch implements writeNodeBatch (§4.8): embeds every node
// lacking SkipEmbedding in sub-batches of EmbedBatchSize, then writes the
// whole batch (embedded and non-embedded together) to the store in one
// bounded-size transaction per Options.BatchSize.
func (imp *Importer) WriteNodeBatch(ctx context.Context, batchIndex int, nodes []types.Node) error {
	writes := make([]graphstore.NodeWrite, len(nodes))
	for i, n := range nodes {
		writes[i] = graphstore.NodeWrite{Node: n}
	}

	var toEmbed []int
	for i, n := range nodes {
		if !n.SkipEmbedding {
			toEmbed = append(toEmbed, i)
		}
	}

	for start := 0; start < len(toEmbed); start += imp.Options.EmbedBatchSize {
		end := start + imp.Options.EmbedBatchSize
		if end > len(toEmbed) {
			end = len(toEmbed)
		}
		group := toEmbed[start:end]

		texts := make([]string, len(group))
		for i, idx := range group {
			texts[i] = imp.embeddingInput(nodes[idx])
		}

		vectors, err := imp.Embedder.Embed(ctx, texts)
		if err != nil {
			return graphindexerrors.NewEmbeddingError(len(texts), err)
		}
		for i, idx := range group {
			writes[idx].Embedding = vectors[i]
		}
	}

	for start := 0; start < len(writes); start += imp.Options.BatchSize {
		end := start + imp.Options.BatchSize
		if end > len(writes) {
			end = len(writes)
		}
		sub := writes[start:end]
		idx := batchIndex
		if err := withRetry(ctx, imp.Options, "writeNodeBatch", func() error {
			return imp.Store.WriteNodes(ctx, sub)
		}); err != nil {
			return graphindexerrors.NewStoreError("writeNodeBatch", idx, err)
		}
	}

	log.WithField("batch", batchIndex).WithField("nodes", len(nodes)).WithField("embedded", len(toEmbed)).Debug("wrote node batch")
	return nil
}

// WriteEdgeBatch implements writeEdgeBatch (§4.8).
func (imp *Importer) WriteEdgeBatch(ctx context.Context, batchIndex int, projectID types.ProjectID, edges []types.Edge) error {
	for start := 0; start < len(edges); start += imp.Options.BatchSize {
		end := start + imp.Options.BatchSize
		if end > len(edges) {
			end = len(edges)
		}
		sub := edges[start:end]
		if err := withRetry(ctx, imp.Options, "writeEdgeBatch", func() error {
			return imp.Store.WriteEdges(ctx, projectID, sub)
		}); err != nil {
			return graphindexerrors.NewStoreError("writeEdgeBatch", batchIndex, err)
		}
	}
	return nil
}

// SaveCrossUnitEdges implements §4.8 saveCrossUnitEdges.
func (imp *Importer) SaveCrossUnitEdges(ctx context.Context, projectID types.ProjectID, paths []string) ([]types.Edge, error) {
	var edges []types.Edge
	err := withRetry(ctx, imp.Options, "saveCrossUnitEdges", func() error {
		var err error
		edges, err = imp.Store.SaveCrossUnitEdges(ctx, projectID, paths)
		return err
	})
	return edges, err
}

// RecreateCrossUnitEdges implements §4.8 recreateCrossUnitEdges.
func (imp *Importer) RecreateCrossUnitEdges(ctx context.Context, projectID types.ProjectID, edges []types.Edge) error {
	return withRetry(ctx, imp.Options, "recreateCrossUnitEdges", func() error {
		return imp.Store.RecreateCrossUnitEdges(ctx, projectID, edges)
	})
}

// ClearFileSubgraph deletes one file's nodes and edges, used by the
// Incremental Engine (§4.10 step 2) ahead of reparsing or on deletion.
func (imp *Importer) ClearFileSubgraph(ctx context.Context, projectID types.ProjectID, path string) error {
	return withRetry(ctx, imp.Options, "deleteFileSubgraph", func() error {
		return imp.Store.DeleteFileSubgraph(ctx, projectID, path)
	})
}

// WriteProject stamps the Project lifecycle node (§3.4, §4.10 step 6).
func (imp *Importer) WriteProject(ctx context.Context, project types.Project) error {
	return withRetry(ctx, imp.Options, "writeProject", func() error {
		return imp.Store.WriteProject(ctx, project)
	})
}

// withRetry retries a store operation with exponential backoff and jitter
// up to Options.RetryMax retries after the initial attempt (§4.8 "Transient store errors ... retried
// with exponential backoff and jitter up to a bounded retry count").
// Logical store errors (types *errors.StoreError already classified as
// non-transient by the caller) are not special-cased here: the store
// adapter is expected to return only transient errors from this path; a
// logical error simply exhausts its retries no differently.
func withRetry(ctx context.Context, opts Options, op string, fn func() error) error {
	base := time.Duration(opts.RetryBaseMs) * time.Millisecond
	capDelay := time.Duration(opts.RetryCapMs) * time.Millisecond

	var lastErr error
	for attempt := 0; attempt <= opts.RetryMax; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == opts.RetryMax {
			break
		}

		delay := base << attempt
		if delay > capDelay || delay <= 0 {
			delay = capDelay
		}
		jitter := time.Duration(rand.Int63n(int64(delay) + 1))
		wait := delay/2 + jitter/2

		log.WithField("op", op).WithField("attempt", attempt+1).WithField("wait", wait).Debug("retrying store operation")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return lastErr
}
