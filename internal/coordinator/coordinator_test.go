package coordinator

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/graphindex/internal/identity"
	"github.com/standardbeagle/graphindex/internal/schema"
)

func writeFiles(t *testing.T, n int) []string {
	t.Helper()
	dir := t.TempDir()
	var files []string
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, filePrefix(i)+".go")
		src := "package demo\n\nfunc F" + filePrefix(i) + "() {}\n"
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
		files = append(files, path)
	}
	return files
}

func filePrefix(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	return string(letters[i%len(letters)]) + string(rune('0'+i/len(letters)))
}

func TestRunDispatchesAllChunks(t *testing.T) {
	defer goleak.VerifyNone(t)

	files := writeFiles(t, 25)
	c := &Coordinator{
		ProjectID: identity.ProjectID("/tmp/proj"),
		Schema:    schema.GoSchema(),
		Options:   Options{ChunkSize: 10, Workers: 2},
	}

	var mu sync.Mutex
	var totalFiles int
	var chunkCount int

	err := c.Run(context.Background(), files, func(res ChunkResult) {
		mu.Lock()
		defer mu.Unlock()
		chunkCount++
		totalFiles += len(res.Files)
		assert.NoError(t, res.Err)
	})

	require.NoError(t, err)
	assert.Equal(t, 3, chunkCount) // 10 + 10 + 5
	assert.Equal(t, 25, totalFiles)
}

func TestRunRespectsCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	files := writeFiles(t, 40)
	c := &Coordinator{
		ProjectID: identity.ProjectID("/tmp/proj"),
		Schema:    schema.GoSchema(),
		Options:   Options{ChunkSize: 5, Workers: 1},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var dispatched int
	err := c.Run(ctx, files, func(res ChunkResult) {
		dispatched++
	})

	assert.Error(t, err)
	assert.LessOrEqual(t, dispatched, 1)
}

func TestRunReportsChunkTimeoutAsFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	files := writeFiles(t, 3)
	c := &Coordinator{
		ProjectID: identity.ProjectID("/tmp/proj"),
		Schema:    schema.GoSchema(),
		Options:   Options{ChunkSize: 3, Workers: 1, WorkerTimeout: time.Nanosecond},
	}

	var gotErr bool
	_ = c.Run(context.Background(), files, func(res ChunkResult) {
		if res.Err != nil {
			gotErr = true
		}
	})
	assert.True(t, gotErr, "a near-zero worker timeout should surface as a chunk failure")
}
