// Package refchess is a reference chessmodel.Position implementation: a
// plain 8x8 board, pseudo-legal move generation and a deterministic
// position hash. It exists to exercise the database end to end without an
// external engine; it is explicitly not authoritative on check/pin
// legality (the storage engine never requires that of its collaborator).
package refchess

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/chessdb/chessdb/chessmodel"
	"github.com/chessdb/chessdb/chesskey"
)

// color identifies the side to move or a piece's owner.
type color uint8

const (
	white color = iota
	black
)

func (c color) other() color {
	if c == white {
		return black
	}
	return white
}

// piece packs a chessmodel.Piece with its owning color; zero value is an
// empty square.
type piece struct {
	kind  chessmodel.Piece
	color color
}

const (
	castleWhiteKing uint8 = 1 << iota
	castleWhiteQueen
	castleBlackKing
	castleBlackQueen
)

// Board is a mutable chess position: 64 squares, side to move, castling
// rights and en-passant target file.
type Board struct {
	squares  [64]piece
	toMove   color
	castling uint8
	epFile   int8 // -1 if none
	epValid  bool
}

var _ chessmodel.Position = (*Board)(nil)

// StartPosition returns the standard chess starting position.
func StartPosition() *Board {
	b, err := FromFEN("rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1")
	if err != nil {
		panic(fmt.Sprintf("refchess: built-in start FEN failed to parse: %v", err))
	}
	return b
}

var pieceLetters = map[byte]chessmodel.Piece{
	'p': chessmodel.PiecePawn,
	'n': chessmodel.PieceKnight,
	'b': chessmodel.PieceBishop,
	'r': chessmodel.PieceRook,
	'q': chessmodel.PieceQueen,
	'k': chessmodel.PieceKing,
}

var pieceLetterByKind = map[chessmodel.Piece]byte{
	chessmodel.PiecePawn:   'p',
	chessmodel.PieceKnight: 'n',
	chessmodel.PieceBishop: 'b',
	chessmodel.PieceRook:   'r',
	chessmodel.PieceQueen:  'q',
	chessmodel.PieceKing:   'k',
}

// FromFEN parses Forsyth-Edwards Notation into a Board. Only the
// piece-placement, side-to-move, castling and en-passant fields are
// consumed; halfmove/fullmove counters are accepted but not retained.
func FromFEN(fen string) (*Board, error) {
	fields := strings.Fields(fen)
	if len(fields) < 4 {
		return nil, fmt.Errorf("refchess: FEN %q has fewer than 4 fields", fen)
	}
	b := &Board{epFile: -1}

	ranks := strings.Split(fields[0], "/")
	if len(ranks) != 8 {
		return nil, fmt.Errorf("refchess: FEN %q does not have 8 ranks", fen)
	}
	for r, rankStr := range ranks {
		file := 0
		for _, ch := range rankStr {
			if ch >= '1' && ch <= '8' {
				file += int(ch - '0')
				continue
			}
			kind, ok := pieceLetters[byte(lower(byte(ch)))]
			if !ok {
				return nil, fmt.Errorf("refchess: FEN %q has invalid piece %q", fen, ch)
			}
			col := white
			if ch >= 'a' && ch <= 'z' {
				col = black
			}
			if file >= 8 {
				return nil, fmt.Errorf("refchess: FEN %q rank %d overflows", fen, r)
			}
			sq := r*8 + file
			b.squares[sq] = piece{kind: kind, color: col}
			file++
		}
	}

	switch fields[1] {
	case "w":
		b.toMove = white
	case "b":
		b.toMove = black
	default:
		return nil, fmt.Errorf("refchess: FEN %q has invalid side to move %q", fen, fields[1])
	}

	if fields[2] != "-" {
		for _, ch := range fields[2] {
			switch ch {
			case 'K':
				b.castling |= castleWhiteKing
			case 'Q':
				b.castling |= castleWhiteQueen
			case 'k':
				b.castling |= castleBlackKing
			case 'q':
				b.castling |= castleBlackQueen
			default:
				return nil, fmt.Errorf("refchess: FEN %q has invalid castling field %q", fen, fields[2])
			}
		}
	}

	if fields[3] != "-" {
		if len(fields[3]) != 2 {
			return nil, fmt.Errorf("refchess: FEN %q has invalid en-passant field %q", fen, fields[3])
		}
		b.epFile = int8(fields[3][0] - 'a')
		b.epValid = true
	}

	return b, nil
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b - 'A' + 'a'
	}
	return b
}

// Clone returns an independent copy of the board.
func (b *Board) Clone() chessmodel.Position {
	cp := *b
	return &cp
}

// Hash derives a 128-bit position hash from the board's canonical FEN-like
// serialization via two independent xxhash seeds, folded into four 32-bit
// words. Deterministic and collision-resistant enough for reference/test
// use; not a cryptographic commitment.
func (b *Board) Hash() chesskey.Hash128 {
	key := b.hashKey()
	h1 := xxhash.Sum64String(key)
	h2 := xxhash.Sum64String(key + "\x00salt")
	return chesskey.Hash128{
		uint32(h1 >> 32), uint32(h1),
		uint32(h2 >> 32), uint32(h2),
	}
}

func (b *Board) hashKey() string {
	var sb strings.Builder
	for _, sq := range b.squares {
		if sq.kind == chessmodel.PieceNone {
			sb.WriteByte('.')
			continue
		}
		ch := pieceLetterByKind[sq.kind]
		if sq.color == white {
			ch = byte(ch - 'a' + 'A')
		}
		sb.WriteByte(ch)
	}
	sb.WriteByte(byte(b.toMove))
	sb.WriteByte(b.castling)
	if b.epValid {
		sb.WriteByte(byte(b.epFile) + 1)
	} else {
		sb.WriteByte(0)
	}
	return sb.String()
}

func sqString(s chessmodel.Square) string {
	file := s % 8
	rank := 8 - s/8
	return string(rune('a'+int(file))) + strconv.Itoa(int(rank))
}
