package partition

import (
	"context"
	"testing"

	"github.com/chessdb/chessdb/chesskey"
	"github.com/chessdb/chessdb/internal/filestore"
	"github.com/chessdb/chessdb/internal/pipeline"
	"github.com/chessdb/chessdb/internal/queryengine"
	"github.com/chessdb/chessdb/internal/run"
	"github.com/chessdb/chessdb/internal/runmeta"
	"github.com/stretchr/testify/require"
)

func entryFor(t *testing.T, w0 uint32, offset uint64) chesskey.Entry {
	t.Helper()
	key := chesskey.NewKeyWithMetadata(chesskey.Hash128{w0, 0, 0, 0}, 0, chesskey.LevelHuman, chesskey.ResultDraw)
	e, err := chesskey.NewEntry(key, offset)
	require.NoError(t, err)
	return e
}

func TestStoreOrderedAssignsSequentialIDs(t *testing.T) {
	dir := t.TempDir()
	pool := filestore.NewPool(16)
	defer pool.Close()

	p, err := Open(pool, dir, 4)
	require.NoError(t, err)
	require.Equal(t, int64(0), p.NextID())

	r0, err := p.StoreOrdered([]chesskey.Entry{entryFor(t, 1, 10)})
	require.NoError(t, err)
	require.Equal(t, int64(0), r0.ID)

	r1, err := p.StoreOrdered([]chesskey.Entry{entryFor(t, 2, 20)})
	require.NoError(t, err)
	require.Equal(t, int64(1), r1.ID)

	require.Equal(t, int64(2), p.NextID())
}

func TestStoreUnorderedCollectsIntoRunList(t *testing.T) {
	dir := t.TempDir()
	pool := filestore.NewPool(16)
	defer pool.Close()

	p, err := Open(pool, dir, 4)
	require.NoError(t, err)

	buffers := pipeline.NewBufferPool(64)
	pl := pipeline.New(context.Background(), pool, dir, 4, 2, 4, buffers)

	id := p.StoreUnordered(pl, []chesskey.Entry{entryFor(t, 9, 1), entryFor(t, 9, 2)})
	require.Equal(t, int64(0), id)

	require.NoError(t, pl.WaitForCompletion())
	require.NoError(t, p.CollectFutureFiles())

	require.Len(t, p.runs, 1)
	n, err := p.runs[0].Len()
	require.NoError(t, err)
	require.Equal(t, 1, n, "duplicate keys should have coalesced in the pipeline before landing here")
}

func TestExecuteQueryDispatchesAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	pool := filestore.NewPool(16)
	defer pool.Close()

	p, err := Open(pool, dir, 4)
	require.NoError(t, err)

	_, err = p.StoreOrdered([]chesskey.Entry{entryFor(t, 7, 100)})
	require.NoError(t, err)
	_, err = p.StoreOrdered([]chesskey.Entry{entryFor(t, 7, 200)})
	require.NoError(t, err)
	_, err = p.StoreOrdered([]chesskey.Entry{entryFor(t, 8, 300)})
	require.NoError(t, err)

	queryKey := chesskey.NewKeyWithMetadata(chesskey.Hash128{7, 0, 0, 0}, 0, chesskey.LevelHuman, chesskey.ResultDraw)
	req := &queryengine.Request{Selects: map[queryengine.Select]queryengine.FetchOptions{
		queryengine.All: {},
	}}
	result, err := p.ExecuteQuery(req, []queryengine.PositionQuery{{Key: queryKey, Level: chesskey.LevelHuman, Result: chesskey.ResultDraw}})
	require.NoError(t, err)
	require.Equal(t, uint64(2), result.Stats[0][queryengine.All].Count)
	require.Equal(t, uint64(100), result.Stats[0][queryengine.All].FirstGameOffset)
}

func TestMergeAllCompactsToLowestID(t *testing.T) {
	dir := t.TempDir()
	pool := filestore.NewPool(16)
	defer pool.Close()

	p, err := Open(pool, dir, 4)
	require.NoError(t, err)

	_, err = p.StoreOrdered([]chesskey.Entry{entryFor(t, 3, 10)})
	require.NoError(t, err)
	_, err = p.StoreOrdered([]chesskey.Entry{entryFor(t, 3, 5)})
	require.NoError(t, err)
	_, err = p.StoreOrdered([]chesskey.Entry{entryFor(t, 4, 1)})
	require.NoError(t, err)

	require.NoError(t, p.MergeAll(1<<20, nil))
	require.Len(t, p.runs, 1)
	require.Equal(t, int64(0), p.runs[0].ID)

	n, err := p.runs[0].Len()
	require.NoError(t, err)
	require.Equal(t, 2, n, "entries sharing word0=3 across two runs should have coalesced into one")

	span, err := p.runs[0].Span()
	require.NoError(t, err)
	got := make([]chesskey.Entry, span.Len())
	require.NoError(t, span.ReadAll(got))
	for _, e := range got {
		if e.Key[0] == 3 {
			count, offset := e.Count.Unpack()
			require.Equal(t, uint64(2), count)
			require.Equal(t, uint64(5), offset)
		}
	}
}

func TestMergeAllStampsMergedRunMeta(t *testing.T) {
	dir := t.TempDir()
	pool := filestore.NewPool(16)
	defer pool.Close()

	p, err := Open(pool, dir, 4)
	require.NoError(t, err)

	_, err = p.StoreOrdered([]chesskey.Entry{entryFor(t, 3, 10)})
	require.NoError(t, err)
	_, err = p.StoreOrdered([]chesskey.Entry{entryFor(t, 4, 1)})
	require.NoError(t, err)

	require.NoError(t, p.MergeAll(1<<20, nil))
	require.Len(t, p.Runs(), 1)

	meta, err := p.runs[0].Meta()
	require.NoError(t, err)
	n, ok := meta.GetUint64(runmeta.KeyNumEntries)
	require.True(t, ok)
	require.Equal(t, uint64(2), n)
	gen, ok := meta.GetUint64(runmeta.KeyGeneration)
	require.True(t, ok)
	require.Equal(t, uint64(2), gen, "two source runs folded into the merged run")
}

func TestMergeAllNoopOnSingleRun(t *testing.T) {
	dir := t.TempDir()
	pool := filestore.NewPool(16)
	defer pool.Close()

	p, err := Open(pool, dir, 4)
	require.NoError(t, err)
	_, err = p.StoreOrdered([]chesskey.Entry{entryFor(t, 1, 1)})
	require.NoError(t, err)

	require.NoError(t, p.MergeAll(1<<20, nil))
	require.Len(t, p.runs, 1)
}

func TestOpenSkipsRunsWithoutValidSidecar(t *testing.T) {
	dir := t.TempDir()
	pool := filestore.NewPool(16)
	defer pool.Close()

	p, err := Open(pool, dir, 4)
	require.NoError(t, err)
	_, err = p.StoreOrdered([]chesskey.Entry{entryFor(t, 1, 1)})
	require.NoError(t, err)

	require.NoError(t, filestore.RemoveFile(pool, run.IndexPath(dir, 0)))

	pool2 := filestore.NewPool(16)
	defer pool2.Close()
	reopened, err := Open(pool2, dir, 4)
	require.NoError(t, err)
	require.Empty(t, reopened.runs)
}

func TestReplicateMergeAllWritesSnapshotWithoutMutatingSource(t *testing.T) {
	dir := t.TempDir()
	destDir := t.TempDir()
	pool := filestore.NewPool(16)
	defer pool.Close()

	p, err := Open(pool, dir, 4)
	require.NoError(t, err)
	_, err = p.StoreOrdered([]chesskey.Entry{entryFor(t, 1, 1)})
	require.NoError(t, err)
	_, err = p.StoreOrdered([]chesskey.Entry{entryFor(t, 2, 2)})
	require.NoError(t, err)

	require.NoError(t, p.ReplicateMergeAll(destDir, 1<<20, nil))
	require.Len(t, p.runs, 2, "source partition must be unmutated by a replicate export")

	destPool := filestore.NewPool(16)
	defer destPool.Close()
	destPartition, err := Open(destPool, destDir, 4)
	require.NoError(t, err)
	require.Len(t, destPartition.runs, 1)
	n, err := destPartition.runs[0].Len()
	require.NoError(t, err)
	require.Equal(t, 2, n)

	meta, err := destPartition.runs[0].Meta()
	require.NoError(t, err)
	recorded, ok := meta.GetUint64(runmeta.KeyNumEntries)
	require.True(t, ok)
	require.Equal(t, uint64(2), recorded)
}
