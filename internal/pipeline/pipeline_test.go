package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/chessdb/chessdb/chesskey"
	"github.com/chessdb/chessdb/internal/filestore"
	"github.com/stretchr/testify/require"
)

func entryFor(t *testing.T, w0 uint32, offset uint64) chesskey.Entry {
	t.Helper()
	key := chesskey.NewKeyWithMetadata(chesskey.Hash128{w0, 0, 0, 0}, 0, chesskey.LevelHuman, chesskey.ResultDraw)
	e, err := chesskey.NewEntry(key, offset)
	require.NoError(t, err)
	return e
}

func TestPipelineSortsCombinesAndWrites(t *testing.T) {
	dir := t.TempDir()
	pool := filestore.NewPool(16)
	defer pool.Close()

	buffers := NewBufferPool(64)
	p := New(context.Background(), pool, dir, 1024, 2, 4, buffers)

	job := Job{ID: 0, Entries: []chesskey.Entry{
		entryFor(t, 5, 100),
		entryFor(t, 1, 10),
		entryFor(t, 5, 50),
	}}
	future := p.Submit(job)

	require.NoError(t, p.WaitForCompletion())

	r, err := future.Wait()
	require.NoError(t, err)
	require.NotNil(t, r)

	n, err := r.Len()
	require.NoError(t, err)
	require.Equal(t, 2, n, "two entries with key word0=5 should have combined into one")

	span, err := r.Span()
	require.NoError(t, err)
	got := make([]chesskey.Entry, span.Len())
	require.NoError(t, span.ReadAll(got))

	require.True(t, chesskey.LessFull(got[0].Key, got[1].Key) || chesskey.EqualFull(got[0].Key, got[1].Key))

	for _, e := range got {
		if e.Key[0] == 5 {
			count, offset := e.Count.Unpack()
			require.Equal(t, uint64(2), count)
			require.Equal(t, uint64(50), offset)
		}
	}
}

func TestPipelineMultipleJobsIndependentRuns(t *testing.T) {
	dir := t.TempDir()
	pool := filestore.NewPool(16)
	defer pool.Close()

	buffers := NewBufferPool(64)
	p := New(context.Background(), pool, dir, 1024, 2, 4, buffers)

	f0 := p.Submit(Job{ID: 0, Entries: []chesskey.Entry{entryFor(t, 1, 1)}})
	f1 := p.Submit(Job{ID: 1, Entries: []chesskey.Entry{entryFor(t, 2, 2)}})

	require.NoError(t, p.WaitForCompletion())

	r0, err := f0.Wait()
	require.NoError(t, err)
	r1, err := f1.Wait()
	require.NoError(t, err)

	require.Equal(t, int64(0), r0.ID)
	require.Equal(t, int64(1), r1.ID)
	require.FileExists(t, filepath.Join(dir, "0"))
	require.FileExists(t, filepath.Join(dir, "1"))
}
