package enhancement

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/standardbeagle/graphindex/internal/types"
)

func TestApplyConstructorDetection(t *testing.T) {
	stack := GoStack()
	n := &types.Node{CoreKind: types.KindFunction, Name: "NewWidget"}
	stack.Apply(n, nil)
	assert.Equal(t, "constructor", n.SemanticKind)
	assert.Contains(t, n.Labels, "Constructor")
	assert.Equal(t, "Widget", n.Context["constructedType"])
}

func TestApplyHTTPHandlerDetection(t *testing.T) {
	stack := GoStack()
	n := &types.Node{CoreKind: types.KindMethod, Name: "ServeHTTP"}
	stack.Apply(n, nil)
	assert.Equal(t, "http.Handler", n.SemanticKind)
}

func TestApplyIsNoopWhenNoMatch(t *testing.T) {
	stack := GoStack()
	n := &types.Node{CoreKind: types.KindFunction, Name: "doStuff"}
	stack.Apply(n, nil)
	assert.Empty(t, n.SemanticKind)
}

func TestApplyEdgeEnhancementsSynthesizesEdgeOnce(t *testing.T) {
	stack := GoStack()
	symbols := []types.Symbol{
		{ID: "a", Name: "NewRootCmd", SemanticKind: "cli.command"},
		{ID: "b", Name: "NewSubCmd", SemanticKind: "cli.command"},
	}
	edges := ApplyEdgeEnhancements("proj_x", symbols, stack, nil)
	assert.Len(t, edges, 1)
	assert.Equal(t, types.ID("a"), edges[0].SourceID)
	assert.Equal(t, types.ID("b"), edges[0].TargetID)
}
