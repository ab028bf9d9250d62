package headerstore

import (
	"path/filepath"
	"testing"

	"github.com/chessdb/chessdb/chesskey"
	"github.com/chessdb/chessdb/internal/filestore"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	h := GameHeader{
		GameIndex: 42,
		Result:    chesskey.ResultWhiteWin,
		Date:      Date{Year: 2024, Month: 7, Day: 15},
		ECO:       "B20",
		PlyCount:  80,
		Event:     "Test Open",
		White:     "Carlsen, M.",
		Black:     "Caruana, F.",
	}
	buf, err := Encode(h)
	require.NoError(t, err)

	size, err := PeekSize(buf[:10])
	require.NoError(t, err)
	require.Equal(t, len(buf), size)

	got, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestEncodeUnknownPlyCount(t *testing.T) {
	h := GameHeader{GameIndex: 1, PlyCount: -1}
	buf, err := Encode(h)
	require.NoError(t, err)
	got, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, -1, got.PlyCount)
}

func TestEncodeRejectsOversizedStrings(t *testing.T) {
	big := make([]byte, 256)
	for i := range big {
		big[i] = 'x'
	}
	_, err := Encode(GameHeader{Event: string(big)})
	require.Error(t, err)
}

func TestStoreAppendAndLookup(t *testing.T) {
	dir := t.TempDir()
	pool := filestore.NewPool(8)
	defer pool.Close()

	store, err := Open(pool, filepath.Join(dir, "header0"), filepath.Join(dir, "index0"))
	require.NoError(t, err)

	h1 := GameHeader{Result: chesskey.ResultWhiteWin, Event: "e1", White: "w1", Black: "b1", PlyCount: -1}
	h2 := GameHeader{Result: chesskey.ResultDraw, Event: "e2", White: "w2", Black: "b2", PlyCount: 10}

	off1, idx1, err := store.Append(h1)
	require.NoError(t, err)
	require.Equal(t, int64(0), off1)
	require.Equal(t, int64(0), idx1)

	off2, idx2, err := store.Append(h2)
	require.NoError(t, err)
	require.Greater(t, off2, off1)
	require.Equal(t, int64(1), idx2)

	require.Equal(t, int64(2), store.NumGames())

	gotByIdx, err := store.ByGameIndex(idx2)
	require.NoError(t, err)
	h2.GameIndex = 0
	require.Equal(t, h2, gotByIdx)

	gotByOffset, err := store.ByOffset(off1)
	require.NoError(t, err)
	h1.GameIndex = 0
	require.Equal(t, h1, gotByOffset)
}

func TestStoreReopenSeesPriorState(t *testing.T) {
	dir := t.TempDir()
	pool := filestore.NewPool(8)
	defer pool.Close()

	headerPath := filepath.Join(dir, "header0")
	indexPath := filepath.Join(dir, "index0")

	store, err := Open(pool, headerPath, indexPath)
	require.NoError(t, err)
	_, _, err = store.Append(GameHeader{Event: "only", PlyCount: -1})
	require.NoError(t, err)
	require.NoError(t, store.Flush())

	reopened, err := Open(pool, headerPath, indexPath)
	require.NoError(t, err)
	require.Equal(t, int64(1), reopened.NumGames())
}
