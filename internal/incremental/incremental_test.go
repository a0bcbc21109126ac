package incremental

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/graphindex/internal/changedetector"
	"github.com/standardbeagle/graphindex/internal/graphstore"
	"github.com/standardbeagle/graphindex/internal/importer"
	"github.com/standardbeagle/graphindex/internal/schema"
	"github.com/standardbeagle/graphindex/internal/types"
)

const testProject types.ProjectID = "proj_test000001"

// memStoreIndex adapts graphstore.MemStore's Snapshot to DeclaredIndexSource.
type memStoreIndex struct{ store *graphstore.MemStore }

func (m memStoreIndex) AllNodes(ctx context.Context, projectID types.ProjectID) ([]types.Node, error) {
	nodes, _ := m.store.Snapshot()
	var out []types.Node
	for _, nw := range nodes {
		if nw.Node.ProjectID == projectID {
			out = append(out, nw.Node)
		}
	}
	return out, nil
}

func newEngine(store *graphstore.MemStore) *Engine {
	return &Engine{
		ProjectID: testProject,
		Schema:    schema.GoSchema(),
		Importer:  importer.New(store, nil, importer.Options{}),
	}
}

func TestApplyReparsesNewFileAndWritesNodes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("package demo\n\nfunc Hello() {}\n"), 0o644))

	store := graphstore.NewMemStore()
	eng := newEngine(store)

	plan := changedetector.Plan{ToReparse: []string{path}}
	stats, err := eng.Apply(context.Background(), plan, memStoreIndex{store})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Reparsed)
	assert.Greater(t, stats.NodesWritten, 0)

	nodes, _ := store.Snapshot()
	var sawFunc bool
	for _, nw := range nodes {
		if nw.Node.CoreKind == types.KindFunction && nw.Node.Name == "Hello" {
			sawFunc = true
		}
	}
	assert.True(t, sawFunc)
}

func TestApplyDeletesSubgraphForRemovedFile(t *testing.T) {
	store := graphstore.NewMemStore()
	require.NoError(t, store.WriteNodes(context.Background(), []graphstore.NodeWrite{
		{Node: types.Node{
			ID:        "n1",
			ProjectID: testProject,
			CoreKind:  types.KindFunction,
			Name:      "Gone",
			Location:  types.Location{FilePath: "/tmp/removed.go"},
		}},
	}))

	eng := newEngine(store)
	plan := changedetector.Plan{ToDelete: []string{"/tmp/removed.go"}}
	stats, err := eng.Apply(context.Background(), plan, memStoreIndex{store})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Deleted)

	nodes, _ := store.Snapshot()
	assert.Empty(t, nodes)
}

func TestApplyDropsCrossUnitEdgeWithDeletedEndpoint(t *testing.T) {
	store := graphstore.NewMemStore()
	keeperPath := filepath.Join(t.TempDir(), "keeper.go")
	require.NoError(t, os.WriteFile(keeperPath, []byte("package demo\n"), 0o644))

	require.NoError(t, store.WriteNodes(context.Background(), []graphstore.NodeWrite{
		{Node: types.Node{ID: "keeper", ProjectID: testProject, CoreKind: types.KindFunction, Name: "Keeper", Location: types.Location{FilePath: keeperPath}}},
		{Node: types.Node{ID: "victim", ProjectID: testProject, CoreKind: types.KindFunction, Name: "Victim", Location: types.Location{FilePath: "/tmp/victim.go"}}},
	}))
	require.NoError(t, store.WriteEdges(context.Background(), testProject, []types.Edge{
		{ID: "e1", ProjectID: testProject, CoreKind: types.EdgeCalls, SourceID: "victim", TargetID: "keeper"},
	}))

	eng := newEngine(store)
	plan := changedetector.Plan{ToDelete: []string{"/tmp/victim.go"}}
	stats, err := eng.Apply(context.Background(), plan, memStoreIndex{store})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.CrossUnitSaved)
	assert.Equal(t, 0, stats.CrossUnitRestored)
	assert.Equal(t, 1, stats.CrossUnitDropped)

	_, edges := store.Snapshot()
	assert.Empty(t, edges)
}

func TestApplyStampsProjectComplete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("package demo\n\nfunc Hello() {}\n"), 0o644))

	store := graphstore.NewMemStore()
	eng := newEngine(store)
	eng.ProjectPath = dir
	eng.ProjectName = "demo"

	plan := changedetector.Plan{ToReparse: []string{path}}
	_, err := eng.Apply(context.Background(), plan, memStoreIndex{store})
	require.NoError(t, err)

	p, ok := store.Project(testProject)
	require.True(t, ok)
	assert.Equal(t, types.ProjectComplete, p.Status)
	assert.Equal(t, "demo", p.Name)
	assert.Greater(t, p.NodeCount, 0)
}

func TestApplyEnforcesSingleInFlightReparse(t *testing.T) {
	store := graphstore.NewMemStore()
	eng := newEngine(store)

	eng.inFlight.Lock()
	done := make(chan struct{})
	go func() {
		_, _ = eng.Apply(context.Background(), changedetector.Plan{}, memStoreIndex{store})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Apply finished while another reparse held the in-flight lock")
	case <-time.After(50 * time.Millisecond):
	}

	eng.inFlight.Unlock()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Apply did not run after the in-flight lock was released")
	}
}
