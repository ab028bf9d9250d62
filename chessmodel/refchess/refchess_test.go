package refchess

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStartPositionLegalMoveCount(t *testing.T) {
	b := StartPosition()
	moves := b.LegalMoves()
	require.Len(t, moves, 20, "20 legal moves from the standard start position")
}

func TestDoMoveChangesHashAndSideToMove(t *testing.T) {
	b := StartPosition()
	h0 := b.Hash()
	require.Equal(t, white, b.toMove)

	m, ok := b.SANToMove("e4")
	require.True(t, ok)
	b.DoMove(m)

	require.Equal(t, black, b.toMove)
	require.NotEqual(t, h0, b.Hash())
}

func TestSANRoundTripsThroughLegalMoves(t *testing.T) {
	b := StartPosition()
	for _, m := range b.LegalMoves() {
		san := b.SAN(m)
		got, ok := b.SANToMove(san)
		require.True(t, ok, "SAN %q should resolve back to a legal move", san)
		require.Equal(t, m, got)
	}
}

func TestEnPassantCapture(t *testing.T) {
	b, err := FromFEN("rnbqkbnr/ppp1pppp/8/3pP3/8/8/PPPP1PPP/RNBQKBNR w KQkq d6 0 3")
	require.NoError(t, err)
	m, ok := b.SANToMove("exd6")
	require.True(t, ok)
	rm := b.DoMove(m)
	require.Equal(t, pieceLetters['p'], rm.CapturedPiece)
	require.Equal(t, pieceOf(b, "d6"), pieceFor(t, 'P'))
	require.Equal(t, pieceNoneAt(b, "d5"), true)
}

func pieceOf(b *Board, square string) piece {
	file := int(square[0] - 'a')
	rank := 8 - int(square[1]-'0')
	return b.squares[rank*8+file]
}

func pieceFor(t *testing.T, letter byte) piece {
	t.Helper()
	kind, ok := pieceLetters[lower(letter)]
	require.True(t, ok)
	col := white
	if letter >= 'a' && letter <= 'z' {
		col = black
	}
	return piece{kind: kind, color: col}
}

func pieceNoneAt(b *Board, square string) bool {
	p := pieceOf(b, square)
	return p.kind == 0
}
