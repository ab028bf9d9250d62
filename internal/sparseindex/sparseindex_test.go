package sparseindex

import (
	"testing"

	"github.com/chessdb/chessdb/chesskey"
	"github.com/stretchr/testify/require"
)

func keyFor(w0 uint32) chesskey.Key {
	return chesskey.NewKeyWithMetadata(chesskey.Hash128{w0, 0, 0, 0}, 0, chesskey.LevelHuman, chesskey.ResultWhiteWin)
}

func TestSingleElementRunHasExactlyOneSample(t *testing.T) {
	b := NewBuilder(1024)
	b.Observe(keyFor(1))
	idx := b.Build()
	require.Len(t, idx.Samples, 1)
	require.Equal(t, int64(1), idx.NumEntries)
}

func TestEqualRangeCoversAllMatches(t *testing.T) {
	b := NewBuilder(4)
	var keys []chesskey.Key
	for i := uint32(0); i < 40; i++ {
		k := keyFor(i / 3) // groups of 3 identical position-words
		keys = append(keys, k)
		b.Observe(k)
	}
	idx := b.Build()

	target := keyFor(5)
	begin, end := idx.EqualRange(target)
	require.GreaterOrEqual(t, begin, int64(0))
	require.LessOrEqual(t, end, int64(len(keys)))

	for i, k := range keys {
		if chesskey.EqualWithoutReverseMove(k, target) {
			require.True(t, int64(i) >= begin && int64(i) < end, "index %d (key word0=%d) should be within [%d,%d)", i, k[0], begin, end)
		}
	}
}

func TestRecordRoundTrip(t *testing.T) {
	r := Record{Key: keyFor(12345), Ordinal: 999}
	require.Equal(t, r, DecodeRecord(EncodeRecord(r)))
}
