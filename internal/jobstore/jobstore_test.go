package jobstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	s, err := Open("", opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndGetRoundTrips(t *testing.T) {
	s := openTestStore(t, Options{})

	id, err := s.Create(Request{ProjectPath: "/repo", Mode: ModeAsync, ChunkSize: 100})
	require.NoError(t, err)

	job, found, err := s.Get(id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, StatusQueued, job.Status)
	assert.Equal(t, "/repo", job.Request.ProjectPath)
}

func TestUpdateRefreshesProgressFields(t *testing.T) {
	s := openTestStore(t, Options{})
	id, err := s.Create(Request{ProjectPath: "/repo", Mode: ModeSync})
	require.NoError(t, err)

	require.NoError(t, s.Update(id, func(j *Job) {
		j.Phase = "parsing"
		j.FilesProcessed = 5
		j.Status = StatusRunning
	}))

	job, _, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "parsing", job.Phase)
	assert.Equal(t, 5, job.FilesProcessed)
}

func TestMarkCompletedSetsCompletedAtAndStatus(t *testing.T) {
	s := openTestStore(t, Options{})
	id, err := s.Create(Request{ProjectPath: "/repo", Mode: ModeAsync})
	require.NoError(t, err)

	require.NoError(t, s.MarkCompleted(id, ""))

	job, _, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.False(t, job.CompletedAt.IsZero())
	assert.GreaterOrEqual(t, job.Elapsed(), time.Duration(0))
}

func TestMarkCompletedWithErrorSetsFailedStatus(t *testing.T) {
	s := openTestStore(t, Options{})
	id, err := s.Create(Request{ProjectPath: "/repo", Mode: ModeAsync})
	require.NoError(t, err)

	require.NoError(t, s.MarkCompleted(id, "boom"))

	job, _, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, "boom", job.Error)
}

func TestEvictionDropsOldestCompletedJobOverCap(t *testing.T) {
	s := openTestStore(t, Options{MaxJobs: 2})

	id1, err := s.Create(Request{ProjectPath: "/a"})
	require.NoError(t, err)
	require.NoError(t, s.MarkCompleted(id1, ""))
	time.Sleep(2 * time.Millisecond)

	id2, err := s.Create(Request{ProjectPath: "/b"})
	require.NoError(t, err)
	require.NoError(t, s.MarkCompleted(id2, ""))
	time.Sleep(2 * time.Millisecond)

	// third job pushes the store over cap; id1 (oldest completed) should evict
	id3, err := s.Create(Request{ProjectPath: "/c"})
	require.NoError(t, err)

	_, found1, _ := s.Get(id1)
	_, found2, _ := s.Get(id2)
	_, found3, _ := s.Get(id3)

	assert.False(t, found1)
	assert.True(t, found2)
	assert.True(t, found3)
}

func TestEvictionNeverDropsQueuedOrRunningJobs(t *testing.T) {
	s := openTestStore(t, Options{MaxJobs: 1})

	id1, err := s.Create(Request{ProjectPath: "/a"})
	require.NoError(t, err)
	// id1 stays queued (never completed)

	_, err = s.Create(Request{ProjectPath: "/b"})
	require.NoError(t, err)

	_, found1, _ := s.Get(id1)
	assert.True(t, found1, "a queued job must never be evicted")
}
