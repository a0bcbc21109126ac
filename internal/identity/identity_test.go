package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/graphindex/internal/types"
)

func TestNodeIDDeterministic(t *testing.T) {
	pid := ProjectID("/abs/path/to/project")
	a := NodeID(pid, types.KindClass, "a.go", "Widget", "")
	b := NodeID(pid, types.KindClass, "a.go", "Widget", "")
	assert.Equal(t, a, b, "two independent runs of the same identity tuple must yield the same id")
}

func TestNodeIDVariesByInput(t *testing.T) {
	pid := ProjectID("/abs/path/to/project")
	base := NodeID(pid, types.KindClass, "a.go", "Widget", "")

	cases := []types.ID{
		NodeID(pid, types.KindInterface, "a.go", "Widget", ""),
		NodeID(pid, types.KindClass, "b.go", "Widget", ""),
		NodeID(pid, types.KindClass, "a.go", "Gadget", ""),
		NodeID(pid, types.KindClass, "a.go", "Widget", "someparent"),
	}
	for _, c := range cases {
		assert.NotEqual(t, base, c)
	}
}

func TestCallEdgeIDIncludesLine(t *testing.T) {
	pid := ProjectID("/abs")
	src := NodeID(pid, types.KindMethod, "a.go", "Foo", "")
	tgt := NodeID(pid, types.KindMethod, "b.go", "Bar", "")

	e1 := CallEdgeID(src, tgt, 10)
	e2 := CallEdgeID(src, tgt, 11)
	assert.NotEqual(t, e1, e2, "distinct call sites between the same pair must mint distinct edge ids")

	e1again := CallEdgeID(src, tgt, 10)
	assert.Equal(t, e1, e1again)
}

func TestProjectIDFormat(t *testing.T) {
	pid := ProjectID("/abs/path")
	require.True(t, len(pid) == len("proj_")+12)
	assert.Equal(t, "proj_", string(pid)[:5])
}

func TestParseNodeIDRoundTrips(t *testing.T) {
	pid := ProjectID("/abs")
	id := NodeID(pid, types.KindFunction, "a.go", "Foo", "")
	gotPid, gotKind, ok := ParseNodeID(id)
	require.True(t, ok)
	assert.Equal(t, pid, gotPid)
	assert.Equal(t, types.KindFunction, gotKind)
}
