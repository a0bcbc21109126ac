// Package pipeline wires the Workspace Parser, Parallel Chunked Coordinator,
// Reference Resolver, Framework Enhancements, Graph Importer, Change
// Detector, Incremental Engine, and Watcher Bridge into the single `Pipeline`
// entry point the CLI (and any future service front-end) drives.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/standardbeagle/graphindex/internal/changedetector"
	"github.com/standardbeagle/graphindex/internal/config"
	"github.com/standardbeagle/graphindex/internal/coordinator"
	"github.com/standardbeagle/graphindex/internal/debug"
	"github.com/standardbeagle/graphindex/internal/embedding"
	"github.com/standardbeagle/graphindex/internal/enhancement"
	graphindexerrors "github.com/standardbeagle/graphindex/internal/errors"
	"github.com/standardbeagle/graphindex/internal/graphstore"
	"github.com/standardbeagle/graphindex/internal/identity"
	"github.com/standardbeagle/graphindex/internal/importer"
	"github.com/standardbeagle/graphindex/internal/incremental"
	"github.com/standardbeagle/graphindex/internal/jobstore"
	"github.com/standardbeagle/graphindex/internal/progress"
	"github.com/standardbeagle/graphindex/internal/resolver"
	"github.com/standardbeagle/graphindex/internal/schema"
	"github.com/standardbeagle/graphindex/internal/types"
	"github.com/standardbeagle/graphindex/internal/watcher"
	"github.com/standardbeagle/graphindex/internal/workspace"
)

var log = debug.Component("pipeline")

// Pipeline is one long-lived process's view of the extraction and
// synchronization system: a configured store, embedder, job tracker, and
// progress fan-out, shared across every project it parses or watches.
type Pipeline struct {
	Config   *config.Config
	Store    graphstore.Store
	Embedder embedding.Service
	Jobs     *jobstore.Store
	Reporter *progress.Reporter

	watchers map[types.ProjectID]*watcher.Subscription
}

// New builds a Pipeline. jobs and reporter may be nil; a nil reporter
// disables progress fan-out, a nil job store disables job tracking (e.g. a
// synchronous one-shot CLI invocation).
func New(cfg *config.Config, store graphstore.Store, embedder embedding.Service, jobs *jobstore.Store, reporter *progress.Reporter) *Pipeline {
	if reporter == nil {
		reporter = progress.NewReporter(nil)
	}
	return &Pipeline{
		Config:   cfg,
		Store:    store,
		Embedder: embedder,
		Jobs:     jobs,
		Reporter: reporter,
		watchers: map[types.ProjectID]*watcher.Subscription{},
	}
}

// ParseOptions mirrors the §6.2 parse request payload, minus projectPath
// and mode which Parse/ParseAsync take directly.
type ParseOptions struct {
	ClearExisting bool
	ChunkSize     int
	WatchAfter    bool
}

// Result is a completed parse's summary, mirrored into the §6.2 status
// endpoint shape when run under a tracked job.
type Result struct {
	ProjectID       types.ProjectID
	FilesProcessed  int
	ChunksProcessed int
	NodesCreated    int
	EdgesCreated    int
	ParseErrors     []error
	ResolverStats   resolver.Stats
	Elapsed         time.Duration
}

// resolveProjectID derives the canonical project handle from its root path
// (§6.1 "a canonical proj_ ID, a path, or a name"; pipeline always receives
// a path and mints the canonical ID from it, so lookups by path and by ID
// agree across the process).
func resolveProjectID(root string) (types.ProjectID, string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", "", graphindexerrors.NewValidationError("projectPath", root, err)
	}
	return identity.ProjectID(abs), abs, nil
}

// Parse runs a full workspace parse synchronously (§4.6, §4.7): discovery,
// parallel chunked parsing with streaming import, a final cross-chunk
// resolve and enhancement pass, then import of the resolved edges.
func (p *Pipeline) Parse(ctx context.Context, projectPath string, opts ParseOptions) (Result, error) {
	start := time.Now()
	projectID, absRoot, err := resolveProjectID(projectPath)
	if err != nil {
		return Result{}, err
	}

	emit := func(phase progress.Phase, current, total int, msg string) {
		ev := progress.Event{ProjectID: projectID, Phase: phase, Current: current, Total: total, Message: msg, Elapsed: time.Since(start)}
		switch phase {
		case progress.PhaseDiscovery, progress.PhaseParsing:
			ev.FilesProcessed = current
		case progress.PhaseImporting:
			ev.ChunkIndex = current
			ev.ChunksTotal = total
		}
		p.Reporter.Emit(ev)
	}

	imp := importer.New(p.Store, p.Embedder, importer.Options{
		BatchSize:       p.Config.Store.BatchSize,
		CharBudget:      p.Config.Embedding.CharBudget,
		EmbedBatchSize:  p.Config.Embedding.BatchSize,
		RetryBaseMs:     p.Config.Store.RetryBaseMs,
		RetryCapMs:      p.Config.Store.RetryCapMs,
		RetryMax:        p.Config.Store.RetryMax,
		VectorDimension: p.Config.Store.VectorDimension,
	})

	if err := imp.EnsureIndexes(ctx); err != nil {
		return Result{}, err
	}
	if opts.ClearExisting {
		if err := imp.ClearProject(ctx, projectID); err != nil {
			return Result{}, err
		}
	}

	projectName := filepath.Base(absRoot)
	failProject := func() {
		now := time.Now().Unix()
		if err := imp.WriteProject(ctx, types.Project{ID: projectID, Path: absRoot, Name: projectName, Status: types.ProjectFailed, CreatedAt: now, UpdatedAt: now}); err != nil {
			log.WithField("project_id", projectID).WithError(err).Warn("failed to stamp project status")
		}
	}

	emit(progress.PhaseDiscovery, 0, 0, "detecting workspace layout")
	excludes := p.Config.EffectiveExcludes()
	layout, err := workspace.DetectLayout(absRoot, excludes)
	if err != nil {
		emit(progress.PhaseFailed, 0, 0, err.Error())
		failProject()
		return Result{}, err
	}

	var files []string
	for _, pkg := range layout.Packages {
		files = append(files, pkg.Files...)
	}
	emit(progress.PhaseDiscovery, len(files), len(files), fmt.Sprintf("discovered %d files across %d packages", len(files), len(layout.Packages)))

	sch := schema.GoSchema()
	enh := enhancement.GoStack()

	idx := resolver.NewDeclaredIndex()
	var deferred []types.DeferredReference
	var symbols []types.Symbol
	var parseErrs []error
	var nodesWritten, edgesWritten, chunksProcessed int

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = p.Config.Chunking.ChunkSize
	}
	if chunkSize <= 0 {
		chunkSize = 100
	}

	coord := &coordinator.Coordinator{
		ProjectID: projectID,
		Schema:    sch,
		Enhance:   enh.Apply,
		Options: coordinator.Options{
			ChunkSize:        chunkSize,
			Workers:          p.Config.Chunking.Workers,
			ReadyQueueFactor: p.Config.Chunking.ReadyQueueFactor,
			WorkerTimeout:    time.Duration(p.Config.Chunking.WorkerTimeoutSec) * time.Second,
		},
	}

	totalChunks := (len(files) + chunkSize - 1) / chunkSize
	emit(progress.PhaseParsing, 0, len(files), "parsing")
	runErr := coord.Run(ctx, files, func(res coordinator.ChunkResult) {
		chunksProcessed++
		if res.Err != nil {
			parseErrs = append(parseErrs, res.Err)
			log.WithField("chunk", res.Index).WithError(res.Err).Warn("chunk failed")
			return
		}

		// Per-file parse errors never abort the chunk (§4.4): the offending
		// files simply contribute no nodes, everything else in the chunk
		// still gets written.
		for _, e := range res.ParseErrs {
			parseErrs = append(parseErrs, e)
			log.WithField("chunk", res.Index).WithError(e).Warn("file parse error")
			emit(progress.PhaseParsing, chunksProcessed, totalChunks, e.Error())
		}

		for _, n := range res.Nodes {
			idx.AddNode(n)
		}
		deferred = append(deferred, res.Deferred...)
		symbols = append(symbols, res.Symbols...)

		if err := imp.WriteNodeBatch(ctx, res.Index, res.Nodes); err != nil {
			parseErrs = append(parseErrs, err)
			return
		}
		if err := imp.WriteEdgeBatch(ctx, res.Index, projectID, res.Edges); err != nil {
			parseErrs = append(parseErrs, err)
			return
		}
		nodesWritten += len(res.Nodes)
		edgesWritten += len(res.Edges)

		emit(progress.PhaseImporting, chunksProcessed, totalChunks, fmt.Sprintf("imported chunk %d (%d nodes, %d edges)", res.Index, len(res.Nodes), len(res.Edges)))
	})
	if runErr != nil {
		emit(progress.PhaseFailed, 0, 0, runErr.Error())
		failProject()
		return Result{}, runErr
	}

	emit(progress.PhaseResolving, 0, len(deferred), "resolving cross-file references")
	r := resolver.New(idx)
	resolvedEdges, stats := r.Resolve(projectID, deferred)
	for kind, count := range stats.UnresolvedByKind {
		p.Reporter.RecordResolverMiss(kind, count)
	}
	if err := imp.WriteEdgeBatch(ctx, -1, projectID, resolvedEdges); err != nil {
		emit(progress.PhaseFailed, 0, 0, err.Error())
		failProject()
		return Result{}, err
	}
	edgesWritten += len(resolvedEdges)

	semanticEdges := enhancement.ApplyEdgeEnhancements(projectID, symbols, enh, nil)
	if len(semanticEdges) > 0 {
		if err := imp.WriteEdgeBatch(ctx, -2, projectID, semanticEdges); err != nil {
			emit(progress.PhaseFailed, 0, 0, err.Error())
			failProject()
			return Result{}, err
		}
		edgesWritten += len(semanticEdges)
	}

	completedAt := time.Now().Unix()
	if err := imp.WriteProject(ctx, types.Project{
		ID:        projectID,
		Path:      absRoot,
		Name:      projectName,
		Status:    types.ProjectComplete,
		NodeCount: nodesWritten,
		EdgeCount: edgesWritten,
		CreatedAt: completedAt,
		UpdatedAt: completedAt,
	}); err != nil {
		log.WithField("project_id", projectID).WithError(err).Warn("failed to stamp project status")
	}

	result := Result{
		ProjectID:       projectID,
		FilesProcessed:  len(files),
		ChunksProcessed: chunksProcessed,
		NodesCreated:    nodesWritten,
		EdgesCreated:    edgesWritten,
		ParseErrors:     parseErrs,
		ResolverStats:   stats,
		Elapsed:         time.Since(start),
	}
	emit(progress.PhaseComplete, len(files), len(files), fmt.Sprintf("parse complete: %d nodes, %d edges", nodesWritten, edgesWritten))

	if opts.WatchAfter {
		if _, err := p.Watch(projectID, absRoot); err != nil {
			log.WithField("project_id", projectID).WithError(err).Warn("failed to start watcher after parse")
		}
	}

	return result, nil
}

// ParseAsync runs Parse in the background under a tracked job, returning
// immediately with the job ID (§6.2 "returns { jobId } in async mode").
// Jobs must be non-nil; ParseAsync returns an error otherwise and starts no
// background parse.
func (p *Pipeline) ParseAsync(ctx context.Context, projectPath string, opts ParseOptions) (string, error) {
	if p.Jobs == nil {
		return "", fmt.Errorf("pipeline: async parse requested but no job store is configured")
	}

	id, err := p.Jobs.Create(jobstore.Request{
		ProjectPath:   projectPath,
		Mode:          jobstore.ModeAsync,
		ClearExisting: opts.ClearExisting,
		ChunkSize:     opts.ChunkSize,
		WatchAfter:    opts.WatchAfter,
	})
	if err != nil {
		return "", err
	}

	go func() {
		_ = p.Jobs.Update(id, func(j *jobstore.Job) { j.Status = jobstore.StatusRunning; j.Phase = "discovery" })

		sub := p.Reporter.Subscribe()
		done := make(chan struct{})
		go func() {
			defer close(done)
			for ev := range sub {
				_ = p.Jobs.Update(id, func(j *jobstore.Job) {
					j.Phase = string(ev.Phase)
					j.FilesProcessed = ev.FilesProcessed
					j.ChunksProcessed = ev.ChunkIndex
					j.NodesCreated = ev.NodesCreated
					j.EdgesCreated = ev.EdgesCreated
				})
			}
		}()

		result, runErr := p.Parse(ctx, projectPath, opts)
		if runErr != nil {
			_ = p.Jobs.MarkCompleted(id, runErr.Error())
			return
		}
		_ = p.Jobs.Update(id, func(j *jobstore.Job) {
			j.FilesProcessed = result.FilesProcessed
			j.ChunksProcessed = result.ChunksProcessed
			j.NodesCreated = result.NodesCreated
			j.EdgesCreated = result.EdgesCreated
		})
		_ = p.Jobs.MarkCompleted(id, "")
	}()

	return id, nil
}

// Watch starts the Watcher Bridge for one project (§4.12), driving the
// Incremental Engine on every settled burst of file-change events. Calling
// Watch again for a project already being watched replaces the prior
// subscription.
func (p *Pipeline) Watch(projectID types.ProjectID, projectRoot string) (*watcher.Subscription, error) {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, graphindexerrors.NewValidationError("projectPath", projectRoot, err)
	}

	if existing, ok := p.watchers[projectID]; ok {
		_ = existing.Stop()
		delete(p.watchers, projectID)
	}

	maxWatchers := p.Config.Watch.MaxWatchers
	if maxWatchers <= 0 {
		maxWatchers = 10
	}
	if len(p.watchers) >= maxWatchers {
		return nil, fmt.Errorf("pipeline: at most %d concurrent watchers are supported, all in use", maxWatchers)
	}

	detector := &changedetector.Detector{ProjectRoot: abs, Excludes: p.Config.EffectiveExcludes()}
	imp := importer.New(p.Store, p.Embedder, importer.Options{
		BatchSize:       p.Config.Store.BatchSize,
		CharBudget:      p.Config.Embedding.CharBudget,
		EmbedBatchSize:  p.Config.Embedding.BatchSize,
		RetryBaseMs:     p.Config.Store.RetryBaseMs,
		RetryCapMs:      p.Config.Store.RetryCapMs,
		RetryMax:        p.Config.Store.RetryMax,
		VectorDimension: p.Config.Store.VectorDimension,
	})

	eng := &incremental.Engine{
		ProjectID:    projectID,
		ProjectPath:  abs,
		ProjectName:  filepath.Base(abs),
		Schema:       schema.GoSchema(),
		EnhanceStack: enhancement.GoStack(),
		Importer:     imp,
	}

	planFn := func() changedetector.Plan {
		indexed, err := p.Store.ListSourceUnits(context.Background(), projectID)
		if err != nil {
			log.WithField("project_id", projectID).WithError(err).Warn("failed to list source units for change detection")
			return changedetector.Plan{}
		}
		return detector.Detect(indexed)
	}

	applyFn := func(ctx context.Context, plan changedetector.Plan) (incremental.Stats, error) {
		return eng.Apply(ctx, plan, p.Store)
	}

	sub, err := watcher.New(projectID, abs, watcher.Options{
		Excludes:            p.Config.EffectiveExcludes(),
		DebounceMs:          p.Config.Watch.DebounceMs,
		RingBufferSize:      p.Config.Watch.RingBufferSize,
		ShutdownWaitSec:     p.Config.Watch.ShutdownWaitSec,
		SyncShutdownWaitSec: p.Config.Watch.SyncShutdownWaitSec,
	}, p.Reporter, planFn, applyFn)
	if err != nil {
		return nil, err
	}

	if err := sub.Start(); err != nil {
		return nil, err
	}
	p.watchers[projectID] = sub
	return sub, nil
}

// StopWatch stops and removes a project's watcher subscription, if any.
func (p *Pipeline) StopWatch(projectID types.ProjectID) error {
	sub, ok := p.watchers[projectID]
	if !ok {
		return nil
	}
	delete(p.watchers, projectID)
	return sub.Stop()
}

// Close stops every active watcher and closes the store.
func (p *Pipeline) Close(ctx context.Context) error {
	for id, sub := range p.watchers {
		if err := sub.Stop(); err != nil {
			log.WithField("project_id", id).WithError(err).Warn("error stopping watcher during shutdown")
		}
	}
	p.watchers = map[types.ProjectID]*watcher.Subscription{}
	return p.Store.Close(ctx)
}
