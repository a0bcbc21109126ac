package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/graphindex/internal/enhancement"
	"github.com/standardbeagle/graphindex/internal/schema"
	"github.com/standardbeagle/graphindex/internal/types"
)

const moduleSrc = "package demo\n\nfunc Helper() string { return \"ok\" }\n"
const callerSrc = "package demo\n\nfunc Caller() string { return Helper() }\n"

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module demo\n\ngo 1.24\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "helper.go"), []byte(moduleSrc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "caller.go"), []byte(callerSrc), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "vendor", "x"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vendor", "x", "skip.go"), []byte(moduleSrc), 0o644))
	return dir
}

func TestDetectLayoutSinglePackageGoMod(t *testing.T) {
	dir := writeProject(t)
	layout, err := DetectLayout(dir, []string{"**/vendor/**"})
	require.NoError(t, err)
	assert.Equal(t, "go.mod", layout.Manifest)
	require.Len(t, layout.Packages, 1)
	assert.Len(t, layout.Packages[0].Files, 2)
}

func TestParseResolvesCrossFileCallAcrossPackageFiles(t *testing.T) {
	dir := writeProject(t)
	layout, err := DetectLayout(dir, []string{"**/vendor/**"})
	require.NoError(t, err)

	wp, err := New(dir, schema.GoSchema(), enhancement.GoStack())
	require.NoError(t, err)

	res := wp.Parse(layout)
	require.Empty(t, res.ParseErrs)

	var sawCall bool
	for _, e := range res.Edges {
		if e.CoreKind == types.EdgeCalls {
			sawCall = true
		}
	}
	assert.True(t, sawCall, "Caller() should resolve a calls edge to Helper() via the cross-file resolver")
}
