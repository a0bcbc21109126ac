// Package progress implements the Progress Reporter (§6.3/6.4): the parse
// and watch event schemas, a channel-based sink callers subscribe to, and
// the prometheus counters/histograms that mirror the same events.
package progress

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/standardbeagle/graphindex/internal/debug"
	"github.com/standardbeagle/graphindex/internal/types"
)

var log = debug.Component("progress")

// Phase is one of the five ordered parse-progress phases, or PhaseFailed,
// which can end the sequence at any point (§5 "Progress events per project
// are emitted in phase order").
type Phase string

const (
	PhaseDiscovery Phase = "discovery"
	PhaseParsing   Phase = "parsing"
	PhaseImporting Phase = "importing"
	PhaseResolving Phase = "resolving"
	PhaseComplete  Phase = "complete"
	PhaseFailed    Phase = "failed"
)

// Event is one progress update for a parse run (§6.3).
type Event struct {
	ProjectID types.ProjectID
	Phase     Phase
	Current   int
	Total     int
	Message   string

	FilesProcessed int
	CurrentFile    string
	ChunkIndex     int
	ChunksTotal    int
	NodesCreated   int
	EdgesCreated   int
	Elapsed        time.Duration
	Err            error
}

// WatcherEventKind is one of the four watcher lifecycle events (§6.4).
type WatcherEventKind string

const (
	EventFileChangeDetected       WatcherEventKind = "file_change_detected"
	EventIncrementalParseStarted  WatcherEventKind = "incremental_parse_started"
	EventIncrementalParseComplete WatcherEventKind = "incremental_parse_completed"
	EventIncrementalParseFailed   WatcherEventKind = "incremental_parse_failed"
)

// WatcherEvent carries the §6.4 envelope: {projectId, projectPath, data, timestamp}.
type WatcherEvent struct {
	Kind        WatcherEventKind
	ProjectID   types.ProjectID
	ProjectPath string
	Data        map[string]any
	Timestamp   time.Time
}

// Metrics holds the prometheus collectors the Reporter increments/observes
// alongside every event it emits (§6.3 "chunk failures, resolver misses,
// embed latency").
type Metrics struct {
	ChunkFailures   prometheus.Counter
	ResolverMisses  *prometheus.CounterVec
	EmbedLatency    prometheus.Histogram
	ParseEvents     *prometheus.CounterVec
	WatcherEvents   *prometheus.CounterVec
}

// NewMetrics registers a fresh Metrics set against reg. Pass
// prometheus.NewRegistry() per process, or prometheus.DefaultRegisterer to
// expose via promhttp.Handler().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ChunkFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "graphindex_chunk_failures_total",
			Help: "Chunks that failed to parse (timeout, panic, or fatal parse error).",
		}),
		ResolverMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graphindex_resolver_misses_total",
			Help: "Deferred references that failed to resolve, by edge kind.",
		}, []string{"edge_kind"}),
		EmbedLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "graphindex_embed_latency_seconds",
			Help:    "Latency of embedding-service batch calls.",
			Buckets: prometheus.DefBuckets,
		}),
		ParseEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graphindex_parse_events_total",
			Help: "Parse progress events emitted, by phase.",
		}, []string{"phase"}),
		WatcherEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graphindex_watcher_events_total",
			Help: "Watcher lifecycle events emitted, by kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.ChunkFailures, m.ResolverMisses, m.EmbedLatency, m.ParseEvents, m.WatcherEvents)
	return m
}

// Reporter fans a project's parse/watcher events out to every subscribed
// channel and into prometheus, the way the teacher's FileWatcher fans events
// out to onBatchStart/onBatchEnd callbacks, generalized to multiple
// subscribers and a typed event instead of bespoke callback fields.
type Reporter struct {
	Metrics *Metrics

	subs        []chan Event
	watcherSubs []chan WatcherEvent
}

// NewReporter builds a Reporter. Metrics may be nil to disable counters
// (e.g. in tests).
func NewReporter(metrics *Metrics) *Reporter {
	return &Reporter{Metrics: metrics}
}

// Subscribe returns a buffered channel of parse events. Callers should keep
// draining it; Emit never blocks on a full subscriber (it drops the event
// for that subscriber rather than stall the pipeline).
func (r *Reporter) Subscribe() <-chan Event {
	ch := make(chan Event, 64)
	r.subs = append(r.subs, ch)
	return ch
}

// SubscribeWatcher returns a buffered channel of watcher lifecycle events.
func (r *Reporter) SubscribeWatcher() <-chan WatcherEvent {
	ch := make(chan WatcherEvent, 64)
	r.watcherSubs = append(r.watcherSubs, ch)
	return ch
}

// Emit publishes one parse progress event (§6.3).
func (r *Reporter) Emit(ev Event) {
	if r.Metrics != nil {
		r.Metrics.ParseEvents.WithLabelValues(string(ev.Phase)).Inc()
		if ev.Phase == PhaseFailed {
			r.Metrics.ChunkFailures.Inc()
		}
	}
	log.WithField("project_id", ev.ProjectID).
		WithField("phase", ev.Phase).
		WithField("current", ev.Current).
		WithField("total", ev.Total).
		Debug(ev.Message)

	for _, ch := range r.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// EmitWatcher publishes one watcher lifecycle event (§6.4).
func (r *Reporter) EmitWatcher(ev WatcherEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if r.Metrics != nil {
		r.Metrics.WatcherEvents.WithLabelValues(string(ev.Kind)).Inc()
	}
	log.WithField("project_id", ev.ProjectID).
		WithField("kind", ev.Kind).
		Debug("watcher event")

	for _, ch := range r.watcherSubs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// RecordResolverMiss mirrors a resolver.Stats tally into the counters.
func (r *Reporter) RecordResolverMiss(kind types.EdgeKind, count int) {
	if r.Metrics == nil || count == 0 {
		return
	}
	r.Metrics.ResolverMisses.WithLabelValues(string(kind)).Add(float64(count))
}

// ObserveEmbedLatency records one embedding-service batch call's duration.
func (r *Reporter) ObserveEmbedLatency(d time.Duration) {
	if r.Metrics == nil {
		return
	}
	r.Metrics.EmbedLatency.Observe(d.Seconds())
}
