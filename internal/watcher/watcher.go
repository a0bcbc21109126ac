// Package watcher implements the Watcher Bridge (§4.12): a recursive
// fsnotify subscription per project, debounced and ring-buffered, driving
// the Incremental Engine on every settled burst of file events.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/graphindex/internal/changedetector"
	"github.com/standardbeagle/graphindex/internal/debug"
	"github.com/standardbeagle/graphindex/internal/incremental"
	"github.com/standardbeagle/graphindex/internal/progress"
	"github.com/standardbeagle/graphindex/internal/types"
)

var log = debug.Component("watcher")

// EventKind classifies one filtered filesystem event (§4.12).
type EventKind string

const (
	EventAdd    EventKind = "add"
	EventChange EventKind = "change"
	EventUnlink EventKind = "unlink"
)

// sourceExtensions restricts events to files the pipeline can parse.
var sourceExtensions = map[string]bool{".go": true}

// Options configures one project's subscription (§4.12 defaults).
type Options struct {
	Excludes            []string
	DebounceMs          int // default 1000
	RingBufferSize      int // default 1000
	ShutdownWaitSec     int // default 30
	SyncShutdownWaitSec int // default 5
}

func (o Options) withDefaults() Options {
	if o.DebounceMs <= 0 {
		o.DebounceMs = 1000
	}
	if o.RingBufferSize <= 0 {
		o.RingBufferSize = 1000
	}
	if o.ShutdownWaitSec <= 0 {
		o.ShutdownWaitSec = 30
	}
	if o.SyncShutdownWaitSec <= 0 {
		o.SyncShutdownWaitSec = 5
	}
	return o
}

// ringEvent is one pending, not-yet-debounced filesystem event.
type ringEvent struct {
	path string
	kind EventKind
}

// Subscription is one project's watcher bridge instance.
type Subscription struct {
	ProjectID   types.ProjectID
	ProjectPath string
	Options     Options

	watcher  *fsnotify.Watcher
	reporter *progress.Reporter

	applyFn func(ctx context.Context, plan changedetector.Plan) (incremental.Stats, error)
	planFn  func() changedetector.Plan

	mu            sync.Mutex
	ring          []ringEvent
	pending       map[string]EventKind
	debounceTimer *time.Timer
	isProcessing  bool
	isStopping    bool

	ctx    context.Context
	cancel context.CancelFunc

	inFlightWG sync.WaitGroup
	syncWG     sync.WaitGroup
}

// ApplyFunc runs the Incremental Engine for a computed plan.
type ApplyFunc func(ctx context.Context, plan changedetector.Plan) (incremental.Stats, error)

// New creates a Subscription but does not start watching; call Start.
// planFn computes the current (toReparse, toDelete) plan against indexed
// state — typically a changedetector.Detector.Detect closure capturing the
// project's last-known source units.
func New(projectID types.ProjectID, projectPath string, opts Options, reporter *progress.Reporter, planFn func() changedetector.Plan, apply ApplyFunc) (*Subscription, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: creating fsnotify watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Subscription{
		ProjectID:   projectID,
		ProjectPath: projectPath,
		Options:     opts.withDefaults(),
		watcher:     fsw,
		reporter:    reporter,
		applyFn:     apply,
		planFn:      planFn,
		pending:     map[string]EventKind{},
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start subscribes recursively under ProjectPath and schedules the startup
// sync reparse.
func (s *Subscription) Start() error {
	if err := s.addWatches(s.ProjectPath); err != nil {
		return fmt.Errorf("watcher: adding watches under %s: %w", s.ProjectPath, err)
	}

	go s.processEvents()

	s.syncWG.Add(1)
	go func() {
		defer s.syncWG.Done()
		s.runSyncReparse()
	}()

	s.emitWatcher(progress.EventIncrementalParseStarted, map[string]any{"reason": "watcher_start"})
	log.WithField("project_id", s.ProjectID).WithField("root", s.ProjectPath).Info("watcher subscription started")
	return nil
}

// addWatches recursively subscribes every non-excluded directory under
// root, guarding against symlink cycles the way the teacher's FileWatcher
// does (§4.12 "recursive file watcher rooted at the project path").
func (s *Subscription) addWatches(root string) error {
	visited := map[string]bool{}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		real, rerr := filepath.EvalSymlinks(path)
		if rerr != nil {
			return nil
		}
		if visited[real] {
			return filepath.SkipDir
		}
		visited[real] = true

		rel, rerr := filepath.Rel(root, path)
		if rerr == nil && rel != "." {
			relSlash := filepath.ToSlash(rel)
			for _, pattern := range s.Options.Excludes {
				if matched, _ := doublestar.Match(pattern, relSlash); matched {
					return filepath.SkipDir
				}
			}
		}

		if err := s.watcher.Add(path); err != nil {
			log.WithField("path", path).WithError(err).Warn("failed to add watch")
		}
		return nil
	})
}

// Stop implements the §4.12 shutdown sequence: stop new dispatch, cancel the
// debounce timer, wait up to ShutdownWaitSec for an in-flight reparse, wait
// up to SyncShutdownWaitSec for the startup sync reparse, then unsubscribe.
func (s *Subscription) Stop() error {
	s.mu.Lock()
	s.isStopping = true
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.mu.Unlock()

	s.cancel()

	waitWithTimeout(&s.inFlightWG, time.Duration(s.Options.ShutdownWaitSec)*time.Second)
	waitWithTimeout(&s.syncWG, time.Duration(s.Options.SyncShutdownWaitSec)*time.Second)

	err := s.watcher.Close()
	s.emitWatcher(progress.EventIncrementalParseComplete, map[string]any{"reason": "watcher_stop"})
	return err
}

// waitWithTimeout waits on wg but gives up after d, so a stuck reparse can
// never hang shutdown indefinitely (§4.12 "wait up to 30s").
func waitWithTimeout(wg *sync.WaitGroup, d time.Duration) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
	}
}

func (s *Subscription) runSyncReparse() {
	plan := s.planFn()
	if len(plan.ToReparse) == 0 && len(plan.ToDelete) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Minute)
	defer cancel()
	if _, err := s.applyFn(ctx, plan); err != nil {
		log.WithField("project_id", s.ProjectID).WithError(err).Warn("startup sync reparse failed")
	}
}

func (s *Subscription) processEvents() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handleFsEvent(ev)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.WithField("project_id", s.ProjectID).WithError(err).Warn("watcher error")
		}
	}
}

func (s *Subscription) handleFsEvent(ev fsnotify.Event) {
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := s.addWatches(ev.Name); err != nil {
				log.WithField("path", ev.Name).WithError(err).Warn("failed to watch new directory")
			}
			return
		}
	}

	if !sourceExtensions[filepath.Ext(ev.Name)] {
		return
	}
	rel, err := filepath.Rel(s.ProjectPath, ev.Name)
	if err == nil {
		rel = filepath.ToSlash(rel)
		for _, pattern := range s.Options.Excludes {
			if matched, _ := doublestar.Match(pattern, rel); matched {
				return
			}
		}
	}

	var kind EventKind
	switch {
	case ev.Op&fsnotify.Remove != 0, ev.Op&fsnotify.Rename != 0:
		kind = EventUnlink
	case ev.Op&fsnotify.Create != 0:
		kind = EventAdd
	case ev.Op&fsnotify.Write != 0:
		kind = EventChange
	default:
		return
	}

	s.emitWatcher(progress.EventFileChangeDetected, map[string]any{"path": ev.Name, "kind": string(kind)})
	s.enqueue(ev.Name, kind)
}

// enqueue records the event in the ring buffer and (re)arms the debounce
// timer. Overflow drops the oldest half of the ring (§4.12).
func (s *Subscription) enqueue(path string, kind EventKind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isStopping {
		return
	}

	s.ring = append(s.ring, ringEvent{path: path, kind: kind})
	if len(s.ring) > s.Options.RingBufferSize {
		drop := len(s.ring) / 2
		s.ring = s.ring[drop:]
	}
	s.pending[path] = kind

	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.debounceTimer = time.AfterFunc(time.Duration(s.Options.DebounceMs)*time.Millisecond, s.onDebounceExpired)
}

// onDebounceExpired runs when a burst of events has settled. Exactly one
// reparse may be in flight per project (§4.12); a concurrent expiration
// checks isProcessing and returns without starting another.
func (s *Subscription) onDebounceExpired() {
	s.mu.Lock()
	if s.isStopping || s.isProcessing {
		s.mu.Unlock()
		return
	}
	events := s.pending
	s.pending = map[string]EventKind{}
	s.isProcessing = true
	s.mu.Unlock()

	s.inFlightWG.Add(1)
	go func() {
		defer s.inFlightWG.Done()
		defer func() {
			s.mu.Lock()
			s.isProcessing = false
			s.mu.Unlock()
		}()
		s.runReparse(events)
	}()
}

func (s *Subscription) runReparse(events map[string]EventKind) {
	s.emitWatcher(progress.EventIncrementalParseStarted, map[string]any{"files": len(events)})

	plan := s.planFn()
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Minute)
	defer cancel()

	stats, err := s.applyFn(ctx, plan)
	if err != nil {
		s.emitWatcher(progress.EventIncrementalParseFailed, map[string]any{"error": err.Error()})
		log.WithField("project_id", s.ProjectID).WithError(err).Warn("incremental reparse failed")
		return
	}

	s.emitWatcher(progress.EventIncrementalParseComplete, map[string]any{
		"reparsed": stats.Reparsed,
		"deleted":  stats.Deleted,
		"nodes":    stats.NodesWritten,
		"edges":    stats.EdgesWritten,
	})
}

func (s *Subscription) emitWatcher(kind progress.WatcherEventKind, data map[string]any) {
	if s.reporter == nil {
		return
	}
	s.reporter.EmitWatcher(progress.WatcherEvent{
		Kind:        kind,
		ProjectID:   s.ProjectID,
		ProjectPath: s.ProjectPath,
		Data:        data,
	})
}
