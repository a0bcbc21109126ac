package graphstore

import (
	"context"
	"sync"

	graphindexerrors "github.com/standardbeagle/graphindex/internal/errors"
	"github.com/standardbeagle/graphindex/internal/types"
)

// MemStore is an in-process reference Store implementation: it carries no
// external dependency and exists so the importer and incremental engine can
// be exercised without a live Neo4j instance. The real deployment target is
// store/neo4jstore.
type MemStore struct {
	mu        sync.Mutex
	nodes     map[types.ID]NodeWrite
	edges     map[types.ID]types.Edge
	projects  map[types.ProjectID]types.Project
	vectorDim int
}

func NewMemStore() *MemStore {
	return &MemStore{
		nodes:    map[types.ID]NodeWrite{},
		edges:    map[types.ID]types.Edge{},
		projects: map[types.ProjectID]types.Project{},
	}
}

func (m *MemStore) EnsureIndexes(ctx context.Context, vectorDimension int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectorDim = vectorDimension
	return nil
}

func (m *MemStore) ClearProject(ctx context.Context, projectID types.ProjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, nw := range m.nodes {
		if nw.Node.ProjectID == projectID {
			delete(m.nodes, id)
		}
	}
	for id, e := range m.edges {
		if e.ProjectID == projectID {
			delete(m.edges, id)
		}
	}
	return nil
}

func (m *MemStore) WriteNodes(ctx context.Context, batch []NodeWrite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, nw := range batch {
		if len(nw.Embedding) > 0 {
			nw.Node.Labels = append(append([]string{}, nw.Node.Labels...), "Embedded")
		}
		m.nodes[nw.Node.ID] = nw
	}
	return nil
}

func (m *MemStore) WriteEdges(ctx context.Context, projectID types.ProjectID, edges []types.Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range edges {
		src, srcOK := m.nodes[e.SourceID]
		tgt, tgtOK := m.nodes[e.TargetID]
		if !srcOK || !tgtOK {
			return graphindexerrors.NewStoreError("writeEdgeBatch", i, errDanglingEdge(e))
		}
		if src.Node.ProjectID != projectID || tgt.Node.ProjectID != projectID {
			return graphindexerrors.NewStoreError("writeEdgeBatch", i, errCrossProjectEdge(e))
		}
		m.edges[e.ID] = e
	}
	return nil
}

func (m *MemStore) SaveCrossUnitEdges(ctx context.Context, projectID types.ProjectID, paths []string) ([]types.Edge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pathSet := make(map[string]bool, len(paths))
	for _, p := range paths {
		pathSet[p] = true
	}
	var out []types.Edge
	for _, e := range m.edges {
		if e.ProjectID != projectID {
			continue
		}
		src, srcOK := m.nodes[e.SourceID]
		tgt, tgtOK := m.nodes[e.TargetID]
		if !srcOK || !tgtOK {
			continue
		}
		srcIn := pathSet[src.Node.Location.FilePath]
		tgtIn := pathSet[tgt.Node.Location.FilePath]
		if srcIn != tgtIn { // exactly one endpoint in the file set
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemStore) RecreateCrossUnitEdges(ctx context.Context, projectID types.ProjectID, edges []types.Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range edges {
		if _, ok := m.nodes[e.SourceID]; !ok {
			continue
		}
		if _, ok := m.nodes[e.TargetID]; !ok {
			continue
		}
		m.edges[e.ID] = e
	}
	return nil
}

func (m *MemStore) DeleteFileSubgraph(ctx context.Context, projectID types.ProjectID, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, nw := range m.nodes {
		if nw.Node.ProjectID == projectID && nw.Node.Location.FilePath == path {
			delete(m.nodes, id)
		}
	}
	for id, e := range m.edges {
		if e.ProjectID != projectID {
			continue
		}
		if _, srcOK := m.nodes[e.SourceID]; !srcOK {
			delete(m.edges, id)
			continue
		}
		if _, tgtOK := m.nodes[e.TargetID]; !tgtOK {
			delete(m.edges, id)
		}
	}
	return nil
}

func (m *MemStore) AllNodes(ctx context.Context, projectID types.ProjectID) ([]types.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Node
	for _, nw := range m.nodes {
		if nw.Node.ProjectID == projectID {
			out = append(out, nw.Node)
		}
	}
	return out, nil
}

func (m *MemStore) ListSourceUnits(ctx context.Context, projectID types.ProjectID) ([]types.SourceUnit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.SourceUnit
	for _, nw := range m.nodes {
		if nw.Node.ProjectID != projectID || nw.Node.CoreKind != types.KindFile {
			continue
		}
		out = append(out, sourceUnitFromFileNode(nw.Node))
	}
	return out, nil
}

func sourceUnitFromFileNode(n types.Node) types.SourceUnit {
	u := types.SourceUnit{FilePath: n.Location.FilePath, Language: "go"}
	if v, ok := n.Context["mtime"].(int64); ok {
		u.ModTime = v
	}
	if v, ok := n.Context["size"].(int64); ok {
		u.Size = v
	}
	if v, ok := n.Context["contentHash"].(string); ok {
		u.ContentHash = v
	}
	return u
}

func (m *MemStore) WriteProject(ctx context.Context, project types.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.projects[project.ID]; ok {
		project.CreatedAt = existing.CreatedAt
	}
	m.projects[project.ID] = project
	return nil
}

// Project returns the stored Project entry, for test assertions.
func (m *MemStore) Project(id types.ProjectID) (types.Project, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	return p, ok
}

func (m *MemStore) Close(ctx context.Context) error { return nil }

// Snapshot returns a defensive copy of the current node/edge sets, for test
// assertions.
func (m *MemStore) Snapshot() (nodes []NodeWrite, edges []types.Edge) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, nw := range m.nodes {
		nodes = append(nodes, nw)
	}
	for _, e := range m.edges {
		edges = append(edges, e)
	}
	return nodes, edges
}

func errDanglingEdge(e types.Edge) error {
	return &danglingEdgeErr{e}
}

func errCrossProjectEdge(e types.Edge) error {
	return &crossProjectEdgeErr{e}
}

type danglingEdgeErr struct{ e types.Edge }

func (d *danglingEdgeErr) Error() string {
	return "edge " + string(d.e.ID) + " has a missing endpoint"
}

type crossProjectEdgeErr struct{ e types.Edge }

func (c *crossProjectEdgeErr) Error() string {
	return "edge " + string(c.e.ID) + " spans more than one project"
}
