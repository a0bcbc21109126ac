package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/graphindex/internal/changedetector"
	"github.com/standardbeagle/graphindex/internal/incremental"
	"github.com/standardbeagle/graphindex/internal/progress"
)

func newTestSubscription(t *testing.T, applyCount *int64) (*Subscription, string) {
	t.Helper()
	dir := t.TempDir()

	planFn := func() changedetector.Plan {
		return changedetector.Plan{ToReparse: []string{filepath.Join(dir, "a.go")}}
	}
	apply := func(ctx context.Context, plan changedetector.Plan) (incremental.Stats, error) {
		atomic.AddInt64(applyCount, 1)
		return incremental.Stats{Reparsed: len(plan.ToReparse)}, nil
	}

	sub, err := New("proj_test0001", dir, Options{DebounceMs: 20, ShutdownWaitSec: 2, SyncShutdownWaitSec: 2}, progress.NewReporter(nil), planFn, apply)
	require.NoError(t, err)
	return sub, dir
}

func TestStartRunsStartupSyncReparse(t *testing.T) {
	var applyCount int64
	sub, _ := newTestSubscription(t, &applyCount)

	require.NoError(t, sub.Start())
	defer sub.Stop()

	require.Eventually(t, func() bool { return atomic.LoadInt64(&applyCount) >= 1 }, time.Second, 5*time.Millisecond)
}

func TestFileWriteTriggersDebouncedReparse(t *testing.T) {
	var applyCount int64
	sub, dir := newTestSubscription(t, &applyCount)

	require.NoError(t, sub.Start())
	defer sub.Stop()

	// drain the startup sync reparse before asserting on the write-triggered one
	require.Eventually(t, func() bool { return atomic.LoadInt64(&applyCount) >= 1 }, time.Second, 5*time.Millisecond)
	atomic.StoreInt64(&applyCount, 0)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package demo\n"), 0o644))

	require.Eventually(t, func() bool { return atomic.LoadInt64(&applyCount) >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestOnDebounceExpiredSkipsWhileProcessing(t *testing.T) {
	var applyCount int64
	sub, _ := newTestSubscription(t, &applyCount)

	sub.isProcessing = true
	sub.pending["x.go"] = EventChange
	sub.onDebounceExpired()

	assert.Equal(t, int64(0), atomic.LoadInt64(&applyCount))
}

func TestEnqueueDropsOldestHalfOnRingOverflow(t *testing.T) {
	var applyCount int64
	sub, _ := newTestSubscription(t, &applyCount)
	sub.Options.RingBufferSize = 4
	sub.Options.DebounceMs = 60000 // keep the timer from firing mid-test

	for i := 0; i < 6; i++ {
		sub.enqueue(filepath.Join("f", string(rune('a'+i))+".go"), EventChange)
	}

	sub.mu.Lock()
	ringLen := len(sub.ring)
	sub.mu.Unlock()
	assert.LessOrEqual(t, ringLen, 4)
	if sub.debounceTimer != nil {
		sub.debounceTimer.Stop()
	}
}

func TestStopRejectsFurtherEnqueues(t *testing.T) {
	var applyCount int64
	sub, _ := newTestSubscription(t, &applyCount)
	require.NoError(t, sub.Start())
	require.NoError(t, sub.Stop())

	sub.enqueue("ignored.go", EventChange)
	sub.mu.Lock()
	ringLen := len(sub.ring)
	sub.mu.Unlock()
	assert.Equal(t, 0, ringLen)
}
