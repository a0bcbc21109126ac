package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/graphindex/internal/config"
	"github.com/standardbeagle/graphindex/internal/graphstore"
	"github.com/standardbeagle/graphindex/internal/types"
)

func writeGoFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestParsePopulatesStoreAndResolvesCrossFileCall(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/demo\n\ngo 1.24\n"), 0o644))
	writeGoFile(t, dir, "a.go", "package demo\n\nfunc Hello() string { return \"hi\" }\n")
	writeGoFile(t, dir, "b.go", "package demo\n\nfunc Greet() string { return Hello() }\n")

	store := graphstore.NewMemStore()
	cfg := config.Default(dir, "demo")
	p := New(cfg, store, nil, nil, nil)

	result, err := p.Parse(context.Background(), dir, ParseOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.FilesProcessed)
	assert.Greater(t, result.NodesCreated, 0)
	assert.Greater(t, result.EdgesCreated, 0)
	assert.Empty(t, result.ParseErrors)

	nodes, edges := store.Snapshot()
	var sawHello, sawGreet bool
	var helloID, greetID types.ID
	for _, nw := range nodes {
		if nw.Node.Name == "Hello" {
			sawHello = true
			if nw.Node.CoreKind == types.KindFunction {
				helloID = nw.Node.ID
			}
		}
		if nw.Node.Name == "Greet" {
			sawGreet = true
			if nw.Node.CoreKind == types.KindFunction {
				greetID = nw.Node.ID
			}
		}
	}
	assert.True(t, sawHello)
	assert.True(t, sawGreet)
	assert.NotEmpty(t, edges)

	var sawCrossFileCall bool
	for _, e := range edges {
		if e.CoreKind == types.EdgeCalls && e.SourceID == greetID && e.TargetID == helloID {
			sawCrossFileCall = true
		}
	}
	assert.True(t, sawCrossFileCall, "Greet() in b.go should resolve a calls edge to Hello() in a.go")

	proj, ok := store.Project(result.ProjectID)
	require.True(t, ok)
	assert.Equal(t, types.ProjectComplete, proj.Status)
	assert.Equal(t, result.NodesCreated, proj.NodeCount)
	assert.Equal(t, result.EdgesCreated, proj.EdgeCount)
}

func TestParseAsyncErrorsWithoutJobStore(t *testing.T) {
	dir := t.TempDir()
	writeGoFile(t, dir, "a.go", "package demo\n\nfunc Hello() {}\n")

	store := graphstore.NewMemStore()
	cfg := config.Default(dir, "demo")
	p := New(cfg, store, nil, nil, nil)

	_, err := p.ParseAsync(context.Background(), dir, ParseOptions{})
	require.Error(t, err, "ParseAsync with no job store configured must error, not silently run untracked")
}

func TestResolveProjectIDIsDeterministicForSamePath(t *testing.T) {
	dir := t.TempDir()
	id1, _, err := resolveProjectID(dir)
	require.NoError(t, err)
	id2, _, err := resolveProjectID(dir)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
}
