package importer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/graphindex/internal/graphstore"
	"github.com/standardbeagle/graphindex/internal/types"
)

type fakeEmbedder struct {
	calls [][]string
	err   error
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return 2 }

func TestWriteNodeBatchSkipsEmbeddingForSkipNodes(t *testing.T) {
	store := graphstore.NewMemStore()
	emb := &fakeEmbedder{}
	imp := New(store, emb, Options{})

	nodes := []types.Node{
		{ID: "a", ProjectID: "proj_x", CoreKind: types.KindFile, Name: "a.go", SkipEmbedding: true},
		{ID: "b", ProjectID: "proj_x", CoreKind: types.KindFunction, Name: "Foo", Body: "func Foo() {}"},
	}
	require.NoError(t, imp.WriteNodeBatch(context.Background(), 0, nodes))

	require.Len(t, emb.calls, 1)
	assert.Len(t, emb.calls[0], 1)

	written, _ := store.Snapshot()
	byID := map[types.ID]graphstore.NodeWrite{}
	for _, nw := range written {
		byID[nw.Node.ID] = nw
	}
	assert.NotContains(t, byID["a"].Node.Labels, "Embedded")
	assert.Contains(t, byID["b"].Node.Labels, "Embedded")
}

func TestEmbeddingInputTruncatesToCharBudget(t *testing.T) {
	store := graphstore.NewMemStore()
	emb := &fakeEmbedder{}
	imp := New(store, emb, Options{CharBudget: 20})

	longBody := make([]byte, 1000)
	for i := range longBody {
		longBody[i] = 'x'
	}
	nodes := []types.Node{
		{ID: "a", ProjectID: "proj_x", CoreKind: types.KindFunction, Name: "F", Body: string(longBody)},
	}
	require.NoError(t, imp.WriteNodeBatch(context.Background(), 0, nodes))
	require.Len(t, emb.calls, 1)
	assert.LessOrEqual(t, len(emb.calls[0][0]), 20)
}

func TestWriteNodeBatchPropagatesEmbeddingError(t *testing.T) {
	store := graphstore.NewMemStore()
	emb := &fakeEmbedder{err: errors.New("rate limited")}
	imp := New(store, emb, Options{})

	nodes := []types.Node{{ID: "a", ProjectID: "proj_x", CoreKind: types.KindFunction, Name: "F", Body: "x"}}
	err := imp.WriteNodeBatch(context.Background(), 0, nodes)
	assert.Error(t, err)
}

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), Options{RetryBaseMs: 1, RetryCapMs: 2, RetryMax: 3}, "test", func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryExhaustsAndReturnsLastError(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), Options{RetryBaseMs: 1, RetryCapMs: 2, RetryMax: 2}, "test", func() error {
		attempts++
		return errors.New("still failing")
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts) // initial try + RetryMax retries
}

func TestWriteEdgeBatchRejectsDanglingEdges(t *testing.T) {
	store := graphstore.NewMemStore()
	imp := New(store, nil, Options{})

	require.NoError(t, imp.WriteNodeBatch(context.Background(), 0, []types.Node{
		{ID: "a", ProjectID: "proj_x", CoreKind: types.KindFunction, Name: "A", SkipEmbedding: true},
	}))

	err := imp.WriteEdgeBatch(context.Background(), 0, "proj_x", []types.Edge{
		{ID: "e1", ProjectID: "proj_x", SourceID: "a", TargetID: "missing"},
	})
	assert.Error(t, err)
}
