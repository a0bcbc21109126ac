package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/graphindex/internal/types"
)

func idx() *DeclaredIndex {
	i := NewDeclaredIndex()
	i.AddNode(types.Node{ID: "file-a", CoreKind: types.KindFile, Name: "a.go", Location: types.Location{FilePath: "a.go"}})
	i.AddNode(types.Node{ID: "file-b", CoreKind: types.KindFile, Name: "b.go", Location: types.Location{FilePath: "b.go"}})
	i.AddNode(types.Node{ID: "fn-helper", CoreKind: types.KindFunction, Name: "Helper", Location: types.Location{FilePath: "b.go"}})
	i.AddNode(types.Node{ID: "type-widget", CoreKind: types.KindClass, Name: "Widget", Location: types.Location{FilePath: "b.go"}})
	return i
}

func TestResolvePreciseFileMatch(t *testing.T) {
	i := idx()
	r := New(i)
	edges, stats := r.Resolve("proj_x", []types.DeferredReference{
		{SourceID: "caller", EdgeKind: types.EdgeCalls, TargetName: "Helper", TargetKind: types.TargetFunction, TargetFilePath: "b.go", FilePath: "a.go", Line: 5},
	})
	require.Len(t, edges, 1)
	assert.Equal(t, types.ID("fn-helper"), edges[0].TargetID)
	assert.Zero(t, stats.Ambiguous)
}

func TestResolveRelativeImport(t *testing.T) {
	i := idx()
	r := New(i)
	edges, _ := r.Resolve("proj_x", []types.DeferredReference{
		{SourceID: "file-a", EdgeKind: types.EdgeImports, TargetName: "./b", TargetKind: types.TargetFile, FilePath: "a.go"},
	})
	require.Len(t, edges, 1)
	assert.Equal(t, types.ID("file-b"), edges[0].TargetID)
}

func TestResolveNameFallback(t *testing.T) {
	i := idx()
	r := New(i)
	edges, _ := r.Resolve("proj_x", []types.DeferredReference{
		{SourceID: "caller", EdgeKind: types.EdgeTypedAs, TargetName: "Widget", TargetKind: types.TargetType, FilePath: "a.go"},
	})
	require.Len(t, edges, 1)
	assert.Equal(t, types.ID("type-widget"), edges[0].TargetID)
}

func TestResolveUnresolvedIsSampled(t *testing.T) {
	i := idx()
	r := New(i)
	_, stats := r.Resolve("proj_x", []types.DeferredReference{
		{SourceID: "caller", EdgeKind: types.EdgeCalls, TargetName: "Missing", TargetKind: types.TargetFunction, FilePath: "a.go"},
	})
	assert.Equal(t, 1, stats.UnresolvedByKind[types.EdgeCalls])
	assert.Equal(t, []string{"Missing"}, stats.UnresolvedSample[types.EdgeCalls])
}

func TestResolveAmbiguousPicksSameDirFirst(t *testing.T) {
	i := NewDeclaredIndex()
	i.AddNode(types.Node{ID: "near", CoreKind: types.KindFunction, Name: "Run", Location: types.Location{FilePath: "pkg/a.go"}})
	i.AddNode(types.Node{ID: "far", CoreKind: types.KindFunction, Name: "Run", Location: types.Location{FilePath: "other/z.go"}})
	r := New(i)
	edges, stats := r.Resolve("proj_x", []types.DeferredReference{
		{SourceID: "caller", EdgeKind: types.EdgeCalls, TargetName: "Run", TargetKind: types.TargetFunction, FilePath: "pkg/b.go"},
	})
	require.Len(t, edges, 1)
	assert.Equal(t, types.ID("near"), edges[0].TargetID)
	assert.Equal(t, 1, stats.Ambiguous)
}

func TestResolveCallEdgeConfidenceIsReduced(t *testing.T) {
	i := idx()
	r := New(i)
	edges, _ := r.Resolve("proj_x", []types.DeferredReference{
		{SourceID: "caller", EdgeKind: types.EdgeCalls, TargetName: "Helper", TargetKind: types.TargetFunction, TargetFilePath: "b.go", FilePath: "a.go", Line: 1},
	})
	require.Len(t, edges, 1)
	assert.InDelta(t, 0.7, edges[0].Confidence, 0.001)
}

func TestResolveScopedPackageImport(t *testing.T) {
	i := idx()
	i.SetPackageRoot("@acme/core", "vendor/acme/core")
	i.AddNode(types.Node{ID: "file-core", CoreKind: types.KindFile, Name: "lib.go", Location: types.Location{FilePath: "vendor/acme/core/lib.go"}})
	r := New(i)
	edges, _ := r.Resolve("proj_x", []types.DeferredReference{
		{SourceID: "file-a", EdgeKind: types.EdgeImports, TargetName: "@acme/core/lib", TargetKind: types.TargetFile, FilePath: "a.go"},
	})
	require.Len(t, edges, 1)
	assert.Equal(t, types.ID("file-core"), edges[0].TargetID)
}
