package refchess

import (
	"strings"

	"github.com/chessdb/chessdb/chessmodel"
)

var promoLetters = map[chessmodel.Piece]byte{
	chessmodel.PieceQueen:  'Q',
	chessmodel.PieceRook:   'R',
	chessmodel.PieceBishop: 'B',
	chessmodel.PieceKnight: 'N',
}

var pieceSANLetter = map[chessmodel.Piece]byte{
	chessmodel.PieceKnight: 'N',
	chessmodel.PieceBishop: 'B',
	chessmodel.PieceRook:   'R',
	chessmodel.PieceQueen:  'Q',
	chessmodel.PieceKing:   'K',
}

// SAN renders m played from the current position in (mostly) standard
// algebraic notation: piece letter (pawns omit it), capture marker,
// destination square, promotion suffix and castling notation. It never
// disambiguates between two identical-destination moves by origin file or
// appends check/mate markers — the reference engine does not compute
// check, and SANToMove only needs a stable round-trip, not full PGN
// fidelity.
func (b *Board) SAN(m chessmodel.Move) string {
	from, to := int(m.From), int(m.To)
	mover := b.squares[from]

	if mover.kind == chessmodel.PieceKing && abs(fileOf(from)-fileOf(to)) == 2 {
		if fileOf(to) > fileOf(from) {
			return "O-O"
		}
		return "O-O-O"
	}

	capture := b.squares[to].kind != chessmodel.PieceNone
	if mover.kind == chessmodel.PiecePawn && !capture && fileOf(from) != fileOf(to) {
		capture = true // en passant
	}

	var sb strings.Builder
	if letter, ok := pieceSANLetter[mover.kind]; ok {
		sb.WriteByte(letter)
	} else if capture {
		sb.WriteByte(byte('a' + fileOf(from)))
	}
	if capture {
		sb.WriteByte('x')
	}
	sb.WriteString(sqString(chessmodel.Square(to)))
	if m.Promotion != chessmodel.PieceNone {
		sb.WriteByte('=')
		sb.WriteByte(promoLetters[m.Promotion])
	}
	return sb.String()
}

// SANToMove resolves san against the legal moves available from this
// position, matching by rendered SAN string.
func (b *Board) SANToMove(san string) (chessmodel.Move, bool) {
	want := strings.TrimRight(strings.TrimSpace(san), "+#")
	for _, m := range b.LegalMoves() {
		if b.SAN(m) == want {
			return m, true
		}
	}
	return chessmodel.Move{}, false
}
