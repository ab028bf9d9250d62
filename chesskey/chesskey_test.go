package chesskey

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPackedReverseMoveRoundTrip(t *testing.T) {
	cases := []ReverseMoveFields{
		{},
		{From: 4, To: 36, CapturedPiece: 0, PrevCastlingRights: 0xF, PromotedPieceType: 0, EpWasValid: false, PrevEpFile: 0},
		{From: 63, To: 0, CapturedPiece: 0xB, PrevCastlingRights: 0x5, PromotedPieceType: 5, EpWasValid: true, PrevEpFile: 7},
		{From: 12, To: 28, CapturedPiece: 9, PrevCastlingRights: 3, PromotedPieceType: 4, EpWasValid: true, PrevEpFile: 4},
	}
	for _, f := range cases {
		got := f.Pack().Unpack()
		require.Equal(t, f, got)
	}
}

func TestNullReverseMoveIsZero(t *testing.T) {
	require.Equal(t, PackedReverseMove(0), NullReverseMove)
}

func TestKeyCompareWordOrder(t *testing.T) {
	h1 := Hash128{1, 2, 3, 99}
	h2 := Hash128{1, 2, 4, 99}
	rm := PackedReverseMove(0)
	k1 := NewKeyWithMetadata(h1, rm, LevelHuman, ResultWhiteWin)
	k2 := NewKeyWithMetadata(h2, rm, LevelHuman, ResultWhiteWin)
	require.True(t, LessFull(k1, k2))
	require.True(t, LessWithoutReverseMove(k1, k2))
	require.False(t, EqualWithoutReverseMove(k1, k2))
}

func TestKeyWord3OnlyVariesLow4Bits(t *testing.T) {
	h := Hash128{10, 20, 30, 0}
	rm := ReverseMoveFields{From: 1, To: 2, PromotedPieceType: 3}.Pack()
	k1 := NewKeyWithMetadata(h, rm, LevelHuman, ResultWhiteWin)
	k2 := NewKeyWithMetadata(h, rm, LevelServer, ResultDraw)
	require.Equal(t, k1[0], k2[0])
	require.Equal(t, k1[1], k2[1])
	require.Equal(t, k1[2], k2[2])
	require.Equal(t, k1[3]&^uint32(0xF), k2[3]&^uint32(0xF),
		"only the low 4 bits of word 3 should differ when level/result vary")
	require.Equal(t, rm, k1.ReverseMove())
	require.Equal(t, rm, k2.ReverseMove())
	require.Equal(t, LevelHuman, k1.Level())
	require.Equal(t, ResultWhiteWin, k1.Result())
	require.Equal(t, LevelServer, k2.Level())
	require.Equal(t, ResultDraw, k2.Result())
}

func TestKeyBytesRoundTrip(t *testing.T) {
	k := NewKeyWithMetadata(Hash128{0xdeadbeef, 1, 2, 0}, PackedReverseMove(12345), LevelEngine, ResultBlackWin)
	require.Equal(t, k, KeyFromBytes(k.Bytes()))
}

func TestPackedCountAndGameOffsetRoundTrip(t *testing.T) {
	cases := []struct{ count, offset uint64 }{
		{0, 0},
		{1, 0},
		{1, 12345},
		{15, GameOffsetInvalid},
		{1, 1 << 20},
		{255, 1 << 24},
	}
	for _, c := range cases {
		p, err := Pack(c.count, c.offset)
		require.NoError(t, err)
		gotCount, gotOffset := p.Unpack()
		require.Equal(t, c.count, gotCount)
		require.Equal(t, c.offset, gotOffset)
	}
}

func TestPackHandlesLargeCountsBelowBudget(t *testing.T) {
	// A count needing 34 bits comfortably fits dataBits (58) alongside a
	// small offset; Pack must not treat this as an error.
	p, err := Pack(1<<33, 0)
	require.NoError(t, err)
	count, offset := p.Unpack()
	require.Equal(t, uint64(1<<33), count)
	require.Equal(t, uint64(0), offset)
}

func TestPackFallsBackToInvalidOffsetOnOverflow(t *testing.T) {
	// count needing 50 bits leaves only 8 offset bits; an offset that
	// doesn't fit there forces the overflow tag, losing the offset.
	p, err := Pack(1<<49, 1<<40)
	require.NoError(t, err)
	count, offset := p.Unpack()
	require.Equal(t, uint64(1<<49), count)
	require.Equal(t, GameOffsetInvalid, offset)
}

func TestCombineAddsCountsAndPrefersValidOffset(t *testing.T) {
	a, err := Pack(2, 10)
	require.NoError(t, err)
	b, err := Pack(3, GameOffsetInvalid)
	require.NoError(t, err)

	combined, err := a.Combine(b)
	require.NoError(t, err)
	count, offset := combined.Unpack()
	require.Equal(t, uint64(5), count)
	require.Equal(t, uint64(10), offset)
}

func TestCombineIsCommutative(t *testing.T) {
	a, _ := Pack(4, 100)
	b, _ := Pack(7, 50)

	ab, err := a.Combine(b)
	require.NoError(t, err)
	ba, err := b.Combine(a)
	require.NoError(t, err)
	require.Equal(t, ab, ba)
}

func TestCombineIsAssociative(t *testing.T) {
	a, _ := Pack(1, 10)
	b, _ := Pack(2, GameOffsetInvalid)
	c, _ := Pack(3, 5)

	abThenC, err := mustCombine(t, a, b)
	abThenC, err = abThenC.Combine(c)
	require.NoError(t, err)

	bcThenA, err := mustCombine(t, b, c)
	aThenBC, err := a.Combine(bcThenA)
	require.NoError(t, err)

	require.Equal(t, abThenC, aThenBC)
}

func mustCombine(t *testing.T, a, b PackedCountAndGameOffset) (PackedCountAndGameOffset, error) {
	t.Helper()
	return a.Combine(b)
}

func TestEntryCombineAndBytesRoundTrip(t *testing.T) {
	k := NewKeyWithMetadata(Hash128{1, 2, 3, 0}, PackedReverseMove(7), LevelHuman, ResultDraw)
	e1, err := NewEntry(k, 42)
	require.NoError(t, err)
	e2, err := NewEntry(k, 7)
	require.NoError(t, err)

	combined, err := e1.Combine(e2)
	require.NoError(t, err)
	count, offset := combined.Count.Unpack()
	require.Equal(t, uint64(2), count)
	require.Equal(t, uint64(7), offset)
	require.Equal(t, k, combined.Key)

	require.Equal(t, combined, EntryFromBytes(combined.Bytes()))
}

func TestResultFromTag(t *testing.T) {
	cases := []struct {
		tag string
		r   Result
		ok  bool
	}{
		{"1-0", ResultWhiteWin, true},
		{"0-1", ResultBlackWin, true},
		{"1/2-1/2", ResultDraw, true},
		{"*", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		r, ok := ResultFromTag(c.tag)
		require.Equal(t, c.ok, ok, c.tag)
		if ok {
			require.Equal(t, c.r, r, c.tag)
		}
	}
}
