package run

import (
	"testing"

	"github.com/chessdb/chessdb/chesskey"
	"github.com/chessdb/chessdb/internal/filestore"
	"github.com/chessdb/chessdb/internal/queryengine"
	"github.com/chessdb/chessdb/internal/runmeta"
	"github.com/stretchr/testify/require"
)

func mkEntry(t *testing.T, w0 uint32, rmove chesskey.PackedReverseMove, offset uint64) chesskey.Entry {
	t.Helper()
	key := chesskey.NewKeyWithMetadata(chesskey.Hash128{w0, 0, 0, 0}, rmove, chesskey.LevelEngine, chesskey.ResultWhiteWin)
	e, err := chesskey.NewEntry(key, offset)
	require.NoError(t, err)
	return e
}

func TestWriteOpenRoundTripAndSingleElementIndex(t *testing.T) {
	dir := t.TempDir()
	pool := filestore.NewPool(16)
	defer pool.Close()

	entries := []chesskey.Entry{mkEntry(t, 7, 0, 100)}
	r, err := Write(pool, dir, 0, entries, 1024)
	require.NoError(t, err)

	n, err := r.Len()
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Len(t, r.index.Samples, 1)

	reopened, err := Open(pool, dir, 0, 1024)
	require.NoError(t, err)
	n2, err := reopened.Len()
	require.NoError(t, err)
	require.Equal(t, 1, n2)
}

func TestExecuteQueryAccumulatesAcrossSelects(t *testing.T) {
	dir := t.TempDir()
	pool := filestore.NewPool(16)
	defer pool.Close()

	rmoveA := chesskey.ReverseMoveFields{From: 1, To: 2}.Pack()
	rmoveB := chesskey.ReverseMoveFields{From: 3, To: 4}.Pack()

	entries := []chesskey.Entry{
		mkEntry(t, 42, rmoveA, 10),
		mkEntry(t, 42, rmoveB, 20),
		mkEntry(t, 99, rmoveA, 30),
	}
	r, err := Write(pool, dir, 0, entries, 4)
	require.NoError(t, err)

	queryKey := chesskey.NewKeyWithMetadata(chesskey.Hash128{42, 0, 0, 0}, rmoveA, chesskey.LevelEngine, chesskey.ResultWhiteWin)
	q := queryengine.PositionQuery{Key: queryKey, Level: chesskey.LevelEngine, Result: chesskey.ResultWhiteWin}

	req := &queryengine.Request{Selects: map[queryengine.Select]queryengine.FetchOptions{
		queryengine.Continuations:  {},
		queryengine.Transpositions: {},
		queryengine.All:            {},
	}}
	result := queryengine.NewResultSet(1, req)
	require.NoError(t, r.ExecuteQuery(req, []queryengine.PositionQuery{q}, result))

	require.Equal(t, uint64(1), result.Stats[0][queryengine.Continuations].Count)
	require.Equal(t, uint64(1), result.Stats[0][queryengine.Transpositions].Count)
	require.Equal(t, uint64(2), result.Stats[0][queryengine.All].Count)
}

func TestWriteStampsMetaWithEntryCount(t *testing.T) {
	dir := t.TempDir()
	pool := filestore.NewPool(16)
	defer pool.Close()

	entries := []chesskey.Entry{mkEntry(t, 1, 0, 0), mkEntry(t, 2, 0, 1)}
	r, err := Write(pool, dir, 0, entries, 1024)
	require.NoError(t, err)

	meta, err := r.Meta()
	require.NoError(t, err)
	n, ok := meta.GetUint64(runmeta.KeyNumEntries)
	require.True(t, ok)
	require.Equal(t, uint64(2), n)
	_, ok = meta.GetString(runmeta.KeyImportedAt)
	require.True(t, ok)
}

func TestReadMetaOnRunWithoutSidecarReturnsZeroValue(t *testing.T) {
	dir := t.TempDir()
	pool := filestore.NewPool(16)
	defer pool.Close()

	meta, err := ReadMeta(pool, dir, 42)
	require.NoError(t, err)
	require.Empty(t, meta.KeyVals)
}

func TestRemoveDeletesMetaSidecar(t *testing.T) {
	dir := t.TempDir()
	pool := filestore.NewPool(16)
	defer pool.Close()

	r, err := Write(pool, dir, 0, []chesskey.Entry{mkEntry(t, 1, 0, 0)}, 1024)
	require.NoError(t, err)
	require.NoError(t, r.Remove())

	meta, err := ReadMeta(pool, dir, 0)
	require.NoError(t, err)
	require.Empty(t, meta.KeyVals)
}

func TestHasValidSidecarDetectsMissingIndex(t *testing.T) {
	dir := t.TempDir()
	pool := filestore.NewPool(16)
	defer pool.Close()

	_, err := Write(pool, dir, 0, []chesskey.Entry{mkEntry(t, 1, 0, 0)}, 1024)
	require.NoError(t, err)
	require.True(t, HasValidSidecar(pool, dir, 0))

	require.NoError(t, filestore.RemoveFile(pool, IndexPath(dir, 0)))
	require.False(t, HasValidSidecar(pool, dir, 0))

	require.False(t, HasValidSidecar(pool, dir, 99))
}
