// Package graphstore defines the external graph-store collaborator
// interface (§6.5). The pipeline depends only on this interface; concrete
// adapters live in sibling packages (store/neo4jstore, and an in-memory
// implementation here for tests).
package graphstore

import (
	"context"

	"github.com/standardbeagle/graphindex/internal/types"
)

// Store is the graph-store collaborator the Graph Importer writes through
// (§4.8, §6.5): labeled nodes and typed relationships, per-property and
// vector indexes, parameterized timeout-bound queries, batched deletion.
type Store interface {
	// EnsureIndexes idempotently creates the per-label lookup indexes, the
	// vector index over embedded bodies, the normalized-hash index, and the
	// session-note vector index (§4.8 createProjectIndexes).
	EnsureIndexes(ctx context.Context, vectorDimension int) error

	// ClearProject deletes every node (and its relationships) belonging to
	// projectID in bounded-size batches (§4.8 clearProject).
	ClearProject(ctx context.Context, projectID types.ProjectID) error

	// WriteNodes bulk-creates or merges a batch of nodes, each already
	// carrying its embedding vector when one was computed (§4.8
	// writeNodeBatch). Nodes with a non-empty Embedding get the additional
	// "Embedded" label.
	WriteNodes(ctx context.Context, batch []NodeWrite) error

	// WriteEdges bulk-creates a batch of edges. Implementations must reject
	// any edge whose endpoints are not both present and in the same project
	// (§4.8 writeEdgeBatch).
	WriteEdges(ctx context.Context, projectID types.ProjectID, edges []types.Edge) error

	// SaveCrossUnitEdges returns edges where exactly one endpoint's file path
	// is in paths (§4.8 saveCrossUnitEdges, used by the Incremental Engine
	// before a subgraph is deleted).
	SaveCrossUnitEdges(ctx context.Context, projectID types.ProjectID, paths []string) ([]types.Edge, error)

	// RecreateCrossUnitEdges idempotently re-attaches previously saved edges
	// by their deterministic endpoint IDs (§4.8 recreateCrossUnitEdges).
	RecreateCrossUnitEdges(ctx context.Context, projectID types.ProjectID, edges []types.Edge) error

	// DeleteFileSubgraph deletes every node whose filePath equals path,
	// DETACH semantics (§3.2 ownership, §4.10 step 2).
	DeleteFileSubgraph(ctx context.Context, projectID types.ProjectID, path string) error

	// AllNodes returns every node belonging to projectID, used to seed the
	// Incremental Engine's existing-symbol index (§4.10 step 3) and to
	// rehydrate a Reference Resolver DeclaredIndex across process restarts.
	AllNodes(ctx context.Context, projectID types.ProjectID) ([]types.Node, error)

	// ListSourceUnits returns the (path, mtime, size, contentHash) tuple for
	// every File node belonging to projectID, the Change Detector's prior
	// state to diff against the current tree (§4.9, §6.6).
	ListSourceUnits(ctx context.Context, projectID types.ProjectID) ([]types.SourceUnit, error)

	// WriteProject upserts the Project node, stamping its lifecycle status
	// and final node/edge counts (§3.4). CreatedAt is set once, on first
	// insert; every call refreshes UpdatedAt.
	WriteProject(ctx context.Context, project types.Project) error

	Close(ctx context.Context) error
}

// NodeWrite pairs a node with its optional embedding vector so the importer
// can hand both to the store in one batch call.
type NodeWrite struct {
	Node      types.Node
	Embedding []float32 // nil when SkipEmbedding or embedding failed
}
