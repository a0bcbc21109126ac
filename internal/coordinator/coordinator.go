// Package coordinator implements the Parallel Chunked Coordinator (§4.7):
// pull-based dispatch of file chunks to a bounded worker pool, with
// streaming import of completed chunks and a single cancellation token.
package coordinator

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/standardbeagle/graphindex/internal/debug"
	graphindexerrors "github.com/standardbeagle/graphindex/internal/errors"
	"github.com/standardbeagle/graphindex/internal/parser"
	"github.com/standardbeagle/graphindex/internal/schema"
	"github.com/standardbeagle/graphindex/internal/types"
)

var log = debug.Component("coordinator")

// Options configures one coordinator run (§4.7, mirrored from
// config.Chunking).
type Options struct {
	ChunkSize        int
	Workers          int // 0 = auto: min(CPUs-1, 8), clamped [1,16]
	ReadyQueueFactor int // in-flight chunk bound = factor * workers, default 2
	WorkerTimeout    time.Duration
}

// resolvedWorkers applies the §4.7 auto-detect rule.
func (o Options) resolvedWorkers() int {
	if o.Workers > 0 {
		return clamp(o.Workers, 1, 16)
	}
	n := runtime.NumCPU() - 1
	if n > 8 {
		n = 8
	}
	return clamp(n, 1, 16)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ChunkResult is one chunk's contribution, keyed by its dispatch index so
// chunk failures can be attributed (§4.8 "the error propagates with the
// batch index").
type ChunkResult struct {
	Index    int
	Files    []string
	Units    []types.SourceUnit
	Nodes    []types.Node
	Edges    []types.Edge
	Deferred []types.DeferredReference
	Symbols  []types.Symbol
	// ParseErrs carries non-fatal per-file parse failures (§4.4): a file
	// with a nil tree or nil root contributes no nodes but never aborts the
	// chunk or the run.
	ParseErrs []error
	// Err is reserved for a fatal chunk failure: worker timeout, memory
	// overrun, or an AST-corrupting error. A non-nil Err cancels the
	// shared run.
	Err error
}

// Coordinator dispatches file chunks to workers running an identically
// configured parser.FileParser.
type Coordinator struct {
	ProjectID types.ProjectID
	Schema    *schema.Schema
	Enhance   func(n *types.Node, parsed schema.ParsedNode)
	Options   Options
}

func chunkFiles(files []string, size int) [][]string {
	if size <= 0 {
		size = 100
	}
	var chunks [][]string
	for i := 0; i < len(files); i += size {
		end := i + size
		if end > len(files) {
			end = len(files)
		}
		chunks = append(chunks, files[i:end])
	}
	return chunks
}

// Run partitions files into chunks and parses them with a bounded worker
// pool. onChunk is invoked, in arbitrary completion order, as each chunk
// finishes — the caller uses it for streaming import (§4.7, §4.8). A chunk
// whose worker times out or whose File Parser panics is reported as a
// failed ChunkResult and is never retried.
func (c *Coordinator) Run(ctx context.Context, files []string, onChunk func(ChunkResult)) error {
	workers := c.Options.resolvedWorkers()
	readyFactor := c.Options.ReadyQueueFactor
	if readyFactor <= 0 {
		readyFactor = 2
	}
	timeout := c.Options.WorkerTimeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}

	chunks := chunkFiles(files, c.Options.ChunkSize)
	log.WithField("project_id", c.ProjectID).WithField("chunks", len(chunks)).WithField("workers", workers).Debug("dispatching chunks")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	inFlight := semaphore.NewWeighted(int64(readyFactor * workers))

	var mu sync.Mutex

	for i, chunk := range chunks {
		if ctx.Err() != nil {
			break // cancellation token tripped: stop dispatch, let started chunks finish
		}
		if err := inFlight.Acquire(gctx, 1); err != nil {
			break // context cancelled while waiting for ready-queue room
		}

		idx := i
		filesCopy := chunk
		g.Go(func() error {
			defer inFlight.Release(1)
			res := c.runChunk(gctx, idx, filesCopy, timeout)
			mu.Lock()
			onChunk(res)
			mu.Unlock()
			return res.Err
		})
	}

	err := g.Wait()
	if ctx.Err() != nil {
		return fmt.Errorf("coordinator: cancelled: %w", ctx.Err())
	}
	return err
}

func (c *Coordinator) runChunk(ctx context.Context, idx int, files []string, timeout time.Duration) (res ChunkResult) {
	res.Index = idx
	res.Files = files

	chunkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				res.Err = graphindexerrors.NewChunkError(idx, files, "panic", fmt.Errorf("%v", r))
			}
		}()
		fp := &parser.FileParser{ProjectID: c.ProjectID, Schema: c.Schema, Enhance: c.Enhance}
		for _, path := range files {
			content, mtimeMs, size, err := parser.ReadFile(path)
			if err != nil {
				res.Err = graphindexerrors.NewChunkError(idx, files, "read", err)
				return
			}
			fileRes := fp.Parse(path, content, mtimeMs, size)
			res.Units = append(res.Units, fileRes.Unit)
			res.Nodes = append(res.Nodes, fileRes.Nodes...)
			res.Edges = append(res.Edges, fileRes.Edges...)
			res.Deferred = append(res.Deferred, fileRes.Deferred...)
			res.Symbols = append(res.Symbols, fileRes.Symbols...)
			res.ParseErrs = append(res.ParseErrs, fileRes.ParseErrs...)
		}
	}()

	select {
	case <-done:
		return res
	case <-chunkCtx.Done():
		res.Err = graphindexerrors.NewChunkError(idx, files, "timeout", fmt.Errorf("worker timeout after %s: %w", timeout, chunkCtx.Err()))
		return res
	}
}
