// Package incremental implements the Incremental Engine (§4.10): applying a
// Change Detector plan by saving cross-unit edges, deleting stale
// subgraphs, reparsing, re-resolving, and re-attaching edges.
package incremental

import (
	"context"
	"sync"
	"time"

	"github.com/standardbeagle/graphindex/internal/changedetector"
	"github.com/standardbeagle/graphindex/internal/debug"
	"github.com/standardbeagle/graphindex/internal/enhancement"
	"github.com/standardbeagle/graphindex/internal/importer"
	"github.com/standardbeagle/graphindex/internal/parser"
	"github.com/standardbeagle/graphindex/internal/resolver"
	"github.com/standardbeagle/graphindex/internal/schema"
	"github.com/standardbeagle/graphindex/internal/types"
)

var log = debug.Component("incremental")

// Stats reports the outcome of one Apply call, for the Progress Reporter
// (§6.3/6.4).
type Stats struct {
	Reparsed          int
	Deleted           int
	NodesWritten      int
	EdgesWritten      int
	CrossUnitSaved    int
	CrossUnitRestored int
	CrossUnitDropped  int
	ResolverStats     resolver.Stats
}

// Engine applies a changedetector.Plan against a graphstore.Store.
type Engine struct {
	ProjectID    types.ProjectID
	ProjectPath  string
	ProjectName  string
	Schema       *schema.Schema
	Enhance      func(n *types.Node, parsed schema.ParsedNode)
	EnhanceStack *enhancement.Stack
	Importer     *importer.Importer

	// inFlight enforces at-most-one-concurrent-reparse-per-project (§4.10).
	inFlight sync.Mutex
}

// DeclaredIndexSource supplies the existing-symbol index the Incremental
// Engine loads surviving nodes into (§4.10 step 3 "loading the union of
// surviving nodes into the existing-symbol index"), decoupled from any one
// store implementation.
type DeclaredIndexSource interface {
	AllNodes(ctx context.Context, projectID types.ProjectID) ([]types.Node, error)
}

// Apply runs §4.10 steps 1-6 over one (toReparse, toDelete) plan.
func (e *Engine) Apply(ctx context.Context, plan changedetector.Plan, existing DeclaredIndexSource) (Stats, error) {
	e.inFlight.Lock()
	defer e.inFlight.Unlock()

	var stats Stats
	affected := append(append([]string{}, plan.ToReparse...), plan.ToDelete...)

	// Step 1: save cross-unit edges before anything is deleted.
	saved, err := e.Importer.SaveCrossUnitEdges(ctx, e.ProjectID, affected)
	if err != nil {
		return stats, err
	}
	stats.CrossUnitSaved = len(saved)

	// Step 2: delete subgraphs for every affected file (deletions and
	// files about to be reparsed both lose their old nodes first).
	for _, path := range affected {
		if err := e.Importer.ClearFileSubgraph(ctx, e.ProjectID, path); err != nil {
			return stats, err
		}
	}
	stats.Deleted = len(plan.ToDelete)

	// Step 3: parse new content for toReparse only, seeding the local
	// index with the union of surviving nodes so cross-file references
	// that land inside this same reparse batch resolve immediately.
	idx := resolver.NewDeclaredIndex()
	if existing != nil {
		survivors, err := existing.AllNodes(ctx, e.ProjectID)
		if err == nil {
			for _, n := range survivors {
				idx.AddNode(n)
			}
		}
	}

	var allNodes []types.Node
	var allEdges []types.Edge
	var allDeferred []types.DeferredReference
	var symbols []types.Symbol

	for _, path := range plan.ToReparse {
		content, mtimeMs, size, err := parser.ReadFile(path)
		if err != nil {
			continue // fail-safe: a file that vanished mid-reparse contributes nothing
		}
		fp := &parser.FileParser{ProjectID: e.ProjectID, Schema: e.Schema, Enhance: e.Enhance}
		res := fp.Parse(path, content, mtimeMs, size)
		allNodes = append(allNodes, res.Nodes...)
		allEdges = append(allEdges, res.Edges...)
		allDeferred = append(allDeferred, res.Deferred...)
		symbols = append(symbols, res.Symbols...)
		for _, n := range res.Nodes {
			idx.AddNode(n)
		}
	}
	stats.Reparsed = len(plan.ToReparse)

	r := resolver.New(idx)
	resolvedEdges, resolverStats := r.Resolve(e.ProjectID, allDeferred)
	allEdges = append(allEdges, resolvedEdges...)
	stats.ResolverStats = resolverStats

	// Step 4: import the new nodes and edges.
	if len(allNodes) > 0 {
		if err := e.Importer.WriteNodeBatch(ctx, 0, allNodes); err != nil {
			return stats, err
		}
		stats.NodesWritten = len(allNodes)
	}
	if e.EnhanceStack != nil && len(symbols) > 0 {
		enhanceEdges := enhancement.ApplyEdgeEnhancements(e.ProjectID, symbols, e.EnhanceStack, nil)
		allEdges = append(allEdges, enhanceEdges...)
	}
	if len(allEdges) > 0 {
		if err := e.Importer.WriteEdgeBatch(ctx, 0, e.ProjectID, allEdges); err != nil {
			return stats, err
		}
		stats.EdgesWritten = len(allEdges)
	}

	// Step 5: re-attach saved cross-unit edges whose endpoints both still
	// exist; a dropped edge (one endpoint gone) is a normal outcome.
	survivingIDs := map[types.ID]bool{}
	for _, n := range allNodes {
		survivingIDs[n.ID] = true
	}
	if existing != nil {
		if survivors, err := existing.AllNodes(ctx, e.ProjectID); err == nil {
			for _, n := range survivors {
				survivingIDs[n.ID] = true
			}
		}
	}

	var toRestore []types.Edge
	for _, edge := range saved {
		if survivingIDs[edge.SourceID] && survivingIDs[edge.TargetID] {
			toRestore = append(toRestore, edge)
		} else {
			stats.CrossUnitDropped++
		}
	}
	if len(toRestore) > 0 {
		if err := e.Importer.RecreateCrossUnitEdges(ctx, e.ProjectID, toRestore); err != nil {
			return stats, err
		}
	}
	stats.CrossUnitRestored = len(toRestore)

	// Step 6: stamp the Project node complete with the post-apply totals
	// (§3.4, §4.10). survivingIDs already holds the union of this apply's
	// written nodes and whatever existed before it, so its size is the
	// project's current node count; edge count is best-effort from what
	// this apply wrote and restored.
	if e.Importer != nil {
		now := time.Now().Unix()
		project := types.Project{
			ID:        e.ProjectID,
			Path:      e.ProjectPath,
			Name:      e.ProjectName,
			Status:    types.ProjectComplete,
			NodeCount: len(survivingIDs),
			EdgeCount: stats.EdgesWritten + stats.CrossUnitRestored,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := e.Importer.WriteProject(ctx, project); err != nil {
			log.WithField("project_id", e.ProjectID).WithError(err).Warn("failed to stamp project status")
		}
	}

	log.WithField("project_id", e.ProjectID).
		WithField("reparsed", stats.Reparsed).
		WithField("deleted", stats.Deleted).
		WithField("cross_unit_restored", stats.CrossUnitRestored).
		WithField("cross_unit_dropped", stats.CrossUnitDropped).
		Info("incremental apply complete")

	return stats, nil
}
