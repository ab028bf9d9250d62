package refchess

import "github.com/chessdb/chessdb/chessmodel"

var knightOffsets = [][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
var kingOffsets = [][2]int{{0, 1}, {1, 1}, {1, 0}, {1, -1}, {0, -1}, {-1, -1}, {-1, 0}, {-1, 1}}
var bishopDirs = [][2]int{{1, 1}, {1, -1}, {-1, -1}, {-1, 1}}
var rookDirs = [][2]int{{0, 1}, {0, -1}, {1, 0}, {-1, 0}}

func fileRank(sq int) (file, rank int) {
	return sq % 8, sq / 8
}

func squareAt(file, rank int) (int, bool) {
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return 0, false
	}
	return rank*8 + file, true
}

// LegalMoves enumerates pseudo-legal moves: every move obeying piece
// movement rules, blocking and capture-of-enemy-only, including castling
// (gated only on rights and an empty corridor) and en passant. It does not
// exclude moves that leave the mover's own king in check — callers that
// need strict legality must filter further, which the storage engine this
// package backs never does (spec Non-goals).
func (b *Board) LegalMoves() []chessmodel.Move {
	var moves []chessmodel.Move
	for sq := 0; sq < 64; sq++ {
		p := b.squares[sq]
		if p.kind == chessmodel.PieceNone || p.color != b.toMove {
			continue
		}
		switch p.kind {
		case chessmodel.PiecePawn:
			moves = append(moves, b.pawnMoves(sq)...)
		case chessmodel.PieceKnight:
			moves = append(moves, b.stepMoves(sq, knightOffsets)...)
		case chessmodel.PieceBishop:
			moves = append(moves, b.slideMoves(sq, bishopDirs)...)
		case chessmodel.PieceRook:
			moves = append(moves, b.slideMoves(sq, rookDirs)...)
		case chessmodel.PieceQueen:
			moves = append(moves, b.slideMoves(sq, bishopDirs)...)
			moves = append(moves, b.slideMoves(sq, rookDirs)...)
		case chessmodel.PieceKing:
			moves = append(moves, b.stepMoves(sq, kingOffsets)...)
			moves = append(moves, b.castlingMoves()...)
		}
	}
	return moves
}

func (b *Board) stepMoves(sq int, offsets [][2]int) []chessmodel.Move {
	file, rank := fileRank(sq)
	var moves []chessmodel.Move
	for _, o := range offsets {
		to, ok := squareAt(file+o[0], rank+o[1])
		if !ok {
			continue
		}
		target := b.squares[to]
		if target.kind == chessmodel.PieceNone || target.color != b.toMove {
			moves = append(moves, chessmodel.Move{From: chessmodel.Square(sq), To: chessmodel.Square(to)})
		}
	}
	return moves
}

func (b *Board) slideMoves(sq int, dirs [][2]int) []chessmodel.Move {
	file, rank := fileRank(sq)
	var moves []chessmodel.Move
	for _, d := range dirs {
		f, r := file, rank
		for {
			f, r = f+d[0], r+d[1]
			to, ok := squareAt(f, r)
			if !ok {
				break
			}
			target := b.squares[to]
			if target.kind == chessmodel.PieceNone {
				moves = append(moves, chessmodel.Move{From: chessmodel.Square(sq), To: chessmodel.Square(to)})
				continue
			}
			if target.color != b.toMove {
				moves = append(moves, chessmodel.Move{From: chessmodel.Square(sq), To: chessmodel.Square(to)})
			}
			break
		}
	}
	return moves
}

// pawnMoves handles single/double push, diagonal captures, en passant and
// promotion. Board rank index increases downward from rank 8 (row 0), so
// White (moving toward rank 8) advances with decreasing row index.
func (b *Board) pawnMoves(sq int) []chessmodel.Move {
	file, rank := fileRank(sq)
	dir := -1
	startRank, promoRank := 6, 0
	if b.toMove == black {
		dir = 1
		startRank, promoRank = 1, 7
	}

	var moves []chessmodel.Move
	addWithPromotion := func(to int) {
		_, toRank := fileRank(to)
		if toRank == promoRank {
			for _, promo := range []chessmodel.Piece{chessmodel.PieceQueen, chessmodel.PieceRook, chessmodel.PieceBishop, chessmodel.PieceKnight} {
				moves = append(moves, chessmodel.Move{From: chessmodel.Square(sq), To: chessmodel.Square(to), Promotion: promo})
			}
			return
		}
		moves = append(moves, chessmodel.Move{From: chessmodel.Square(sq), To: chessmodel.Square(to)})
	}

	if to, ok := squareAt(file, rank+dir); ok && b.squares[to].kind == chessmodel.PieceNone {
		addWithPromotion(to)
		if rank == startRank {
			if to2, ok := squareAt(file, rank+2*dir); ok && b.squares[to2].kind == chessmodel.PieceNone {
				moves = append(moves, chessmodel.Move{From: chessmodel.Square(sq), To: chessmodel.Square(to2)})
			}
		}
	}

	for _, df := range []int{-1, 1} {
		to, ok := squareAt(file+df, rank+dir)
		if !ok {
			continue
		}
		target := b.squares[to]
		if target.kind != chessmodel.PieceNone && target.color != b.toMove {
			addWithPromotion(to)
			continue
		}
		if b.epValid && int(b.epFile) == file+df {
			epCaptureRank := 3
			if b.toMove == black {
				epCaptureRank = 4
			}
			if rank == epCaptureRank {
				moves = append(moves, chessmodel.Move{From: chessmodel.Square(sq), To: chessmodel.Square(to)})
			}
		}
	}
	return moves
}

func (b *Board) castlingMoves() []chessmodel.Move {
	var moves []chessmodel.Move
	empty := func(sqs ...int) bool {
		for _, s := range sqs {
			if b.squares[s].kind != chessmodel.PieceNone {
				return false
			}
		}
		return true
	}
	if b.toMove == white {
		if b.castling&castleWhiteKing != 0 && empty(61, 62) {
			moves = append(moves, chessmodel.Move{From: 60, To: 62})
		}
		if b.castling&castleWhiteQueen != 0 && empty(57, 58, 59) {
			moves = append(moves, chessmodel.Move{From: 60, To: 58})
		}
	} else {
		if b.castling&castleBlackKing != 0 && empty(5, 6) {
			moves = append(moves, chessmodel.Move{From: 4, To: 6})
		}
		if b.castling&castleBlackQueen != 0 && empty(1, 2, 3) {
			moves = append(moves, chessmodel.Move{From: 4, To: 2})
		}
	}
	return moves
}

// DoMove applies m, mutating the board, and returns the information
// needed to undo it.
func (b *Board) DoMove(m chessmodel.Move) chessmodel.ReverseMove {
	from, to := int(m.From), int(m.To)
	mover := b.squares[from]
	captured := b.squares[to]

	rmove := chessmodel.ReverseMove{
		Move:               m,
		CapturedPiece:      captured.kind,
		PrevCastlingRights: b.castling,
		PrevEpFile:         uint8(maxI8(b.epFile, 0)),
		EpWasValid:         b.epValid,
	}

	isEnPassant := mover.kind == chessmodel.PiecePawn && captured.kind == chessmodel.PieceNone && fileOf(from) != fileOf(to)
	if isEnPassant {
		capturedSq := to - 8
		if mover.color == white {
			capturedSq = to + 8
		}
		rmove.CapturedPiece = b.squares[capturedSq].kind
		b.squares[capturedSq] = piece{}
	}

	b.squares[to] = mover
	b.squares[from] = piece{}

	if mover.kind == chessmodel.PieceKing && abs(fileOf(from)-fileOf(to)) == 2 {
		if to == 62 {
			b.squares[61], b.squares[63] = b.squares[63], piece{}
		} else if to == 58 {
			b.squares[59], b.squares[56] = b.squares[56], piece{}
		} else if to == 6 {
			b.squares[5], b.squares[7] = b.squares[7], piece{}
		} else if to == 2 {
			b.squares[3], b.squares[0] = b.squares[0], piece{}
		}
	}

	if m.Promotion != chessmodel.PieceNone {
		b.squares[to] = piece{kind: m.Promotion, color: mover.color}
	}

	b.updateCastlingRights(from, to)

	b.epValid = false
	b.epFile = -1
	if mover.kind == chessmodel.PiecePawn && abs(rankOf(from)-rankOf(to)) == 2 {
		b.epValid = true
		b.epFile = int8(fileOf(from))
	}

	b.toMove = b.toMove.other()
	return rmove
}

func (b *Board) updateCastlingRights(from, to int) {
	clear := func(sq int) {
		switch sq {
		case 60:
			b.castling &^= castleWhiteKing | castleWhiteQueen
		case 4:
			b.castling &^= castleBlackKing | castleBlackQueen
		case 63:
			b.castling &^= castleWhiteKing
		case 56:
			b.castling &^= castleWhiteQueen
		case 7:
			b.castling &^= castleBlackKing
		case 0:
			b.castling &^= castleBlackQueen
		}
	}
	clear(from)
	clear(to)
}

func fileOf(sq int) int { return sq % 8 }
func rankOf(sq int) int { return sq / 8 }

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func maxI8(v int8, floor int8) int8 {
	if v < floor {
		return floor
	}
	return v
}
