package graphstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/graphindex/internal/types"
)

func node(id types.ID, projectID types.ProjectID, path string) types.Node {
	return types.Node{ID: id, ProjectID: projectID, CoreKind: types.KindFunction, Name: string(id), Location: types.Location{FilePath: path}}
}

func TestWriteNodesTagsEmbedded(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	require.NoError(t, s.WriteNodes(ctx, []NodeWrite{
		{Node: node("a", "proj_x", "a.go"), Embedding: []float32{0.1, 0.2}},
		{Node: node("b", "proj_x", "b.go")},
	}))
	nodes, _ := s.Snapshot()
	byID := map[types.ID]NodeWrite{}
	for _, n := range nodes {
		byID[n.Node.ID] = n
	}
	assert.Contains(t, byID["a"].Node.Labels, "Embedded")
	assert.NotContains(t, byID["b"].Node.Labels, "Embedded")
}

func TestWriteEdgesRejectsDanglingEndpoint(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	require.NoError(t, s.WriteNodes(ctx, []NodeWrite{{Node: node("a", "proj_x", "a.go")}}))
	err := s.WriteEdges(ctx, "proj_x", []types.Edge{{ID: "e1", ProjectID: "proj_x", SourceID: "a", TargetID: "missing"}})
	assert.Error(t, err)
}

func TestWriteEdgesRejectsCrossProject(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	require.NoError(t, s.WriteNodes(ctx, []NodeWrite{
		{Node: node("a", "proj_x", "a.go")},
		{Node: node("b", "proj_y", "b.go")},
	}))
	err := s.WriteEdges(ctx, "proj_x", []types.Edge{{ID: "e1", ProjectID: "proj_x", SourceID: "a", TargetID: "b"}})
	assert.Error(t, err)
}

func TestSaveCrossUnitEdgesReturnsOnlyBoundaryEdges(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	require.NoError(t, s.WriteNodes(ctx, []NodeWrite{
		{Node: node("a", "proj_x", "a.go")},
		{Node: node("b", "proj_x", "b.go")},
		{Node: node("c", "proj_x", "c.go")},
	}))
	require.NoError(t, s.WriteEdges(ctx, "proj_x", []types.Edge{
		{ID: "e-ab", ProjectID: "proj_x", SourceID: "a", TargetID: "b"}, // crosses a.go/b.go boundary
		{ID: "e-bb", ProjectID: "proj_x", SourceID: "b", TargetID: "b"}, // within b.go
	}))

	edges, err := s.SaveCrossUnitEdges(ctx, "proj_x", []string{"a.go"})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, types.ID("e-ab"), edges[0].ID)
}

func TestDeleteFileSubgraphDetachesDanglingEdges(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	require.NoError(t, s.WriteNodes(ctx, []NodeWrite{
		{Node: node("a", "proj_x", "a.go")},
		{Node: node("b", "proj_x", "b.go")},
	}))
	require.NoError(t, s.WriteEdges(ctx, "proj_x", []types.Edge{{ID: "e-ab", ProjectID: "proj_x", SourceID: "a", TargetID: "b"}}))

	require.NoError(t, s.DeleteFileSubgraph(ctx, "proj_x", "a.go"))

	nodes, edges := s.Snapshot()
	assert.Len(t, nodes, 1)
	assert.Empty(t, edges)
}

func TestWriteProjectPreservesCreatedAtAcrossUpdates(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	require.NoError(t, s.WriteProject(ctx, types.Project{
		ID: "proj_x", Status: types.ProjectParsing, CreatedAt: 100, UpdatedAt: 100,
	}))
	require.NoError(t, s.WriteProject(ctx, types.Project{
		ID: "proj_x", Status: types.ProjectComplete, NodeCount: 5, EdgeCount: 3, CreatedAt: 200, UpdatedAt: 200,
	}))

	p, ok := s.Project("proj_x")
	require.True(t, ok)
	assert.Equal(t, int64(100), p.CreatedAt)
	assert.Equal(t, int64(200), p.UpdatedAt)
	assert.Equal(t, types.ProjectComplete, p.Status)
	assert.Equal(t, 5, p.NodeCount)
}

func TestClearProjectRemovesOnlyThatProject(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	require.NoError(t, s.WriteNodes(ctx, []NodeWrite{
		{Node: node("a", "proj_x", "a.go")},
		{Node: node("b", "proj_y", "b.go")},
	}))
	require.NoError(t, s.ClearProject(ctx, "proj_x"))
	nodes, _ := s.Snapshot()
	require.Len(t, nodes, 1)
	assert.Equal(t, types.ProjectID("proj_y"), nodes[0].Node.ProjectID)
}
