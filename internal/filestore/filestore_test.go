package filestore

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

var uint64Codec = Codec[uint64]{
	Size: 8,
	Encode: func(v uint64) []byte {
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, v)
		return b
	},
	Decode: func(b []byte) uint64 { return binary.BigEndian.Uint64(b) },
}

func lessUint64(a, b uint64) bool { return a < b }

func TestBackInserterFlushesAndRoundTrips(t *testing.T) {
	dir := t.TempDir()
	pool := NewPool(8)
	defer pool.Close()

	path := filepath.Join(dir, "out")
	out, err := CreateOutput(pool, path, uint64Codec)
	require.NoError(t, err)

	ins := NewBackInserter(out, 3)
	for _, v := range []uint64{1, 2, 3, 4, 5} {
		require.NoError(t, ins.Append(v))
	}
	require.NoError(t, ins.Close())
	require.NoError(t, out.Sync())

	immut, err := OpenImmutable(pool, path, uint64Codec)
	require.NoError(t, err)
	n, err := immut.Len()
	require.NoError(t, err)
	require.Equal(t, 5, n)

	got := make([]uint64, n)
	require.NoError(t, immut.ReadAll(got))
	require.Equal(t, []uint64{1, 2, 3, 4, 5}, got)
}

func TestPoolReopenDoesNotTruncateWrites(t *testing.T) {
	dir := t.TempDir()
	pool := NewPool(1) // capacity 1 forces eviction on the second path
	defer pool.Close()

	pathA := filepath.Join(dir, "a")
	pathB := filepath.Join(dir, "b")

	outA, err := CreateOutput(pool, pathA, uint64Codec)
	require.NoError(t, err)
	require.NoError(t, outA.WriteAll([]uint64{1, 2}))

	outB, err := CreateOutput(pool, pathB, uint64Codec)
	require.NoError(t, err)
	require.NoError(t, outB.WriteAll([]uint64{3}))

	// Re-acquiring A must append, not truncate, despite the eviction.
	require.NoError(t, outA.WriteAll([]uint64{4}))

	immutA, err := OpenImmutable(pool, pathA, uint64Codec)
	require.NoError(t, err)
	n, err := immutA.Len()
	require.NoError(t, err)
	require.Equal(t, 3, n)
	got := make([]uint64, n)
	require.NoError(t, immutA.ReadAll(got))
	require.Equal(t, []uint64{1, 2, 4}, got)
}

func writeSortedFile(t *testing.T, pool *Pool, path string, values []uint64) ImmutableSpan[uint64] {
	t.Helper()
	out, err := CreateOutput(pool, path, uint64Codec)
	require.NoError(t, err)
	require.NoError(t, out.WriteAll(values))
	require.NoError(t, out.Sync())
	immut, err := OpenImmutable(pool, path, uint64Codec)
	require.NoError(t, err)
	span, err := NewSpan(immut)
	require.NoError(t, err)
	return span
}

func TestMergeIsStableAndSorted(t *testing.T) {
	dir := t.TempDir()
	pool := NewPool(32)
	defer pool.Close()

	spanA := writeSortedFile(t, pool, filepath.Join(dir, "a"), []uint64{1, 3, 5})
	spanB := writeSortedFile(t, pool, filepath.Join(dir, "b"), []uint64{2, 3, 6})

	out, err := Merge(pool, []ImmutableSpan[uint64]{spanA, spanB}, filepath.Join(dir, "merged"), uint64Codec, lessUint64, 4096, nil)
	require.NoError(t, err)
	n, err := out.Len()
	require.NoError(t, err)
	got := make([]uint64, n)
	require.NoError(t, out.ReadAll(got))
	require.Equal(t, []uint64{1, 2, 3, 3, 5, 6}, got)
}

func TestMergeWideFanInPartitionsIntoGroups(t *testing.T) {
	dir := t.TempDir()
	pool := NewPool(64)
	defer pool.Close()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "in"), 0o755))
	var spans []ImmutableSpan[uint64]
	for i := 0; i < 40; i++ {
		spans = append(spans, writeSortedFile(t, pool, filepath.Join(dir, "in", intToName(i)), []uint64{uint64(i)}))
	}

	out, err := Merge(pool, spans, filepath.Join(dir, "merged"), uint64Codec, lessUint64, 4096, nil)
	require.NoError(t, err)
	n, err := out.Len()
	require.NoError(t, err)
	require.Equal(t, 40, n)
	got := make([]uint64, n)
	require.NoError(t, out.ReadAll(got))
	for i := 1; i < len(got); i++ {
		require.LessOrEqual(t, got[i-1], got[i])
	}
}

func intToName(i int) string {
	const digits = "0123456789"
	if i < 10 {
		return string(digits[i])
	}
	return intToName(i/10) + string(digits[i%10])
}

func TestSortProducesPermutationInOrder(t *testing.T) {
	dir := t.TempDir()
	pool := NewPool(32)
	defer pool.Close()

	values := []uint64{9, 1, 8, 2, 7, 3, 6, 4, 5, 0}
	out, err := Sort(pool, values, filepath.Join(dir, "tmp"), filepath.Join(dir, "sorted"), uint64Codec, lessUint64, 64, true, nil)
	require.NoError(t, err)

	n, err := out.Len()
	require.NoError(t, err)
	require.Equal(t, len(values), n)
	got := make([]uint64, n)
	require.NoError(t, out.ReadAll(got))
	require.Equal(t, []uint64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}
