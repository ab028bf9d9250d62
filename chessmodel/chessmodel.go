// Package chessmodel declares the chess-domain collaborator interfaces the
// storage engine consumes but does not implement: position identity,
// move application/undo, and the game iterator import walks. A real
// deployment plugs in a full chess engine/SAN parser; this package only
// promises the shapes those collaborators must present.
//
// chessmodel/refchess ships one reference implementation — board
// representation, legal (pseudo-legal) move generation and a
// deterministic position hash — sufficient to run the database end to
// end without depending on an external engine.
package chessmodel

import "github.com/chessdb/chessdb/chesskey"

// Square is a 0-63 board index, a8=0 .. h1=63 (rank-major, matching the
// from/to fields PackedReverseMove packs).
type Square uint8

// Piece identifies a piece type, independent of color, 0 meaning "none".
type Piece uint8

const (
	PieceNone Piece = iota
	PiecePawn
	PieceKnight
	PieceBishop
	PieceRook
	PieceQueen
	PieceKing
)

// Move is a single ply: source/destination squares and, for pawn
// promotions, the piece type promoted to (PieceNone otherwise).
type Move struct {
	From, To  Square
	Promotion Piece
}

// ReverseMove is everything needed to undo a move: the move itself plus
// what it captured and the position state it overwrote.
type ReverseMove struct {
	Move               Move
	CapturedPiece      Piece
	PrevCastlingRights uint8
	PrevEpFile         uint8 // 0-7, only meaningful if EpWasValid
	EpWasValid         bool
}

// Fields projects a ReverseMove onto the core's packed wire fields.
func (r ReverseMove) Fields() chesskey.ReverseMoveFields {
	return chesskey.ReverseMoveFields{
		From:               uint8(r.Move.From),
		To:                 uint8(r.Move.To),
		CapturedPiece:      uint8(r.CapturedPiece),
		PrevCastlingRights: r.PrevCastlingRights,
		PromotedPieceType:  uint8(r.Move.Promotion),
		EpWasValid:         r.EpWasValid,
		PrevEpFile:         r.PrevEpFile,
	}
}

// Position is the chess-engine collaborator surface the import and query
// paths need: position identity, move application, legal-move
// enumeration and SAN resolution.
type Position interface {
	// Hash returns the 128-bit position hash (only the top 3 words are
	// used by Key; the 4th is discarded by callers).
	Hash() chesskey.Hash128

	// DoMove applies a move in place and returns the information needed
	// to undo it.
	DoMove(m Move) ReverseMove

	// LegalMoves enumerates moves available from this position. The
	// storage engine treats this as pseudo-legal: it never itself
	// validates check/pin legality (spec Non-goals).
	LegalMoves() []Move

	// SANToMove resolves a SAN string to a Move in this position, or
	// false if no legal move matches.
	SANToMove(san string) (Move, bool)

	// SAN renders m (assumed legal in this position) as algebraic
	// notation, the label query expansion keys each child result under.
	SAN(m Move) string

	// Clone returns an independent copy so a caller can probe children
	// (LegalMoves + DoMove) without disturbing the walked position.
	Clone() Position
}

// Factory constructs positions: the standard starting position, or one
// parsed from a FEN string.
type Factory interface {
	StartPosition() Position
	FromFEN(fen string) (Position, error)
}
