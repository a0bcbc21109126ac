// Package jobstore tracks the lifecycle of background parse jobs (§5, §6.2):
// a badger-backed key/value store with a TTL and a hard cap, overflow
// evicting the oldest completed job first.
package jobstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/standardbeagle/graphindex/internal/debug"
)

var log = debug.Component("jobstore")

const keyPrefix = "job:"

// Mode is the parse request's execution mode (§6.2).
type Mode string

const (
	ModeSync  Mode = "sync"
	ModeAsync Mode = "async"
)

// Status is a job's lifecycle state.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Request is the §6.2 parse request payload.
type Request struct {
	ProjectPath   string `json:"projectPath"`
	Mode          Mode   `json:"mode"`
	ClearExisting bool   `json:"clearExisting"`
	UseStreaming  bool   `json:"useStreaming"`
	ChunkSize     int    `json:"chunkSize"`
	WatchAfter    bool   `json:"watchAfter,omitempty"`
}

// Job is one background parse job's persisted state, matching the §6.2
// status endpoint shape plus the bookkeeping the store needs for
// TTL/cap eviction.
type Job struct {
	ID              string    `json:"id"`
	Request         Request   `json:"request"`
	Phase           string    `json:"phase"`
	FilesProcessed  int       `json:"filesProcessed"`
	ChunksProcessed int       `json:"chunksProcessed"`
	NodesCreated    int       `json:"nodesCreated"`
	EdgesCreated    int       `json:"edgesCreated"`
	Status          Status    `json:"status"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	CompletedAt     time.Time `json:"completedAt,omitempty"`
}

// Elapsed reports the duration the status endpoint returns (§6.2 "elapsedMs").
func (j Job) Elapsed() time.Duration {
	end := j.CompletedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(j.CreatedAt)
}

// Store is a badger-backed job metadata store, capped at maxJobs entries
// with a per-entry TTL; overflow evicts the oldest-completed job first
// (§5 "TTL 1h ... cap of 100 entries; overflow evicts oldest-completed").
type Store struct {
	db      *badger.DB
	ttl     time.Duration
	maxJobs int

	mu sync.Mutex // serializes eviction scans against concurrent Put calls
}

// Options configures the store's TTL and cap (defaults match §5).
type Options struct {
	TTL     time.Duration // default 1h
	MaxJobs int           // default 100
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = time.Hour
	}
	if o.MaxJobs <= 0 {
		o.MaxJobs = 100
	}
	return o
}

// Open opens (or creates) a badger database at path for job metadata. Pass
// "" for an in-memory store, used by tests and single-shot CLI runs that
// don't need job state to survive a restart.
func Open(path string, opts Options) (*Store, error) {
	opts = opts.withDefaults()

	var badgerOpts badger.Options
	if path == "" {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		badgerOpts = badger.DefaultOptions(path)
	}
	badgerOpts = badgerOpts.WithLoggingLevel(badger.ERROR)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("jobstore: opening badger db: %w", err)
	}

	return &Store{db: db, ttl: opts.TTL, maxJobs: opts.MaxJobs}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func jobKey(id string) []byte {
	return []byte(keyPrefix + id)
}

// Create inserts a new queued job and returns its ID (§6.2 "{ jobId }").
func (s *Store) Create(req Request) (string, error) {
	id := uuid.NewString()
	job := Job{
		ID:        id,
		Request:   req,
		Phase:     "queued",
		Status:    StatusQueued,
		CreatedAt: time.Now(),
	}
	if err := s.put(job); err != nil {
		return "", err
	}
	s.evictIfOverCap()
	return id, nil
}

func (s *Store) put(job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("jobstore: marshaling job: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(jobKey(job.ID), data).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
}

// Get returns one job by ID.
func (s *Store) Get(id string) (Job, bool, error) {
	var job Job
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(jobKey(id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &job)
		})
	})
	return job, found, err
}

// Update applies fn to the stored job and persists the result, refreshing
// its TTL.
func (s *Store) Update(id string, fn func(*Job)) error {
	job, found, err := s.Get(id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("jobstore: job %s not found", id)
	}
	fn(&job)
	return s.put(job)
}

// MarkCompleted stamps a job as completed (or failed, if errMsg is
// non-empty) and sets CompletedAt.
func (s *Store) MarkCompleted(id string, errMsg string) error {
	return s.Update(id, func(j *Job) {
		j.CompletedAt = time.Now()
		if errMsg != "" {
			j.Status = StatusFailed
			j.Error = errMsg
			j.Phase = "failed"
		} else {
			j.Status = StatusCompleted
			j.Phase = "complete"
		}
	})
}

// All returns every live (non-expired) job, for eviction and listing.
func (s *Store) All() ([]Job, error) {
	var jobs []Job
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var job Job
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &job)
			}); err != nil {
				continue
			}
			jobs = append(jobs, job)
		}
		return nil
	})
	return jobs, err
}

// evictIfOverCap drops the oldest completed jobs (by CompletedAt, then
// CreatedAt for ties) until the store is back at maxJobs. Jobs still
// queued or running are never evicted by this pass.
func (s *Store) evictIfOverCap() {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs, err := s.All()
	if err != nil || len(jobs) <= s.maxJobs {
		return
	}

	var completed []Job
	for _, j := range jobs {
		if j.Status == StatusCompleted || j.Status == StatusFailed {
			completed = append(completed, j)
		}
	}
	sort.Slice(completed, func(i, k int) bool {
		if !completed[i].CompletedAt.Equal(completed[k].CompletedAt) {
			return completed[i].CompletedAt.Before(completed[k].CompletedAt)
		}
		return completed[i].CreatedAt.Before(completed[k].CreatedAt)
	})

	over := len(jobs) - s.maxJobs
	for i := 0; i < over && i < len(completed); i++ {
		if err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(jobKey(completed[i].ID))
		}); err != nil {
			log.WithField("job_id", completed[i].ID).WithError(err).Warn("failed to evict job")
		}
	}
}
