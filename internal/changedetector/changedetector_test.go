package changedetector

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/graphindex/internal/types"
)

func TestDetectClassifiesNewFileAsReparse(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package demo\n"), 0o644))

	d := &Detector{ProjectRoot: dir}
	plan := d.Detect(nil)

	require.Len(t, plan.ToReparse, 1)
	assert.Empty(t, plan.ToDelete)
}

func TestDetectClassifiesUnchangedFileAsSkip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("package demo\n"), 0o644))

	info, err := os.Stat(path)
	require.NoError(t, err)
	hash, err := hashFile(path)
	require.NoError(t, err)

	d := &Detector{ProjectRoot: dir}
	plan := d.Detect([]types.SourceUnit{
		{FilePath: path, ModTime: info.ModTime().UnixMilli(), Size: info.Size(), ContentHash: hash},
	})

	assert.Empty(t, plan.ToReparse)
	assert.Empty(t, plan.ToDelete)
}

func TestDetectClassifiesChangedContentAsReparse(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("package demo\n"), 0o644))

	d := &Detector{ProjectRoot: dir}

	require.NoError(t, os.WriteFile(path, []byte("package demo\n\nfunc F() {}\n"), 0o644))
	// force a distinct mtime so the fast path can't short-circuit on a clock
	// with coarse resolution
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	plan := d.Detect([]types.SourceUnit{
		{FilePath: path, ModTime: 0, Size: 5, ContentHash: "stale"},
	})
	assert.Contains(t, plan.ToReparse, path)
}

func TestDetectClassifiesRemovedFileAsDelete(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "gone.go")

	d := &Detector{ProjectRoot: dir}
	plan := d.Detect([]types.SourceUnit{
		{FilePath: missing, ModTime: 0, Size: 0, ContentHash: "x"},
	})
	assert.Contains(t, plan.ToDelete, missing)
}

func TestDetectHonorsExcludePatterns(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "vendor"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vendor", "skip.go"), []byte("package v\n"), 0o644))

	d := &Detector{ProjectRoot: dir, Excludes: []string{"**/vendor/**"}}
	plan := d.Detect(nil)
	assert.Empty(t, plan.ToReparse)
}
