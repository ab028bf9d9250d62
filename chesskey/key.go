package chesskey

import "encoding/binary"

// Hash128 is the 128-bit position hash produced by the chess collaborator's
// position_hash function, represented as four 32-bit words in the order
// spec.md §3 calls Word 0..3 (Word 3 is discarded by Key, since Key
// overwrites it with packed reverse-move/level/result).
type Hash128 [4]uint32

// Key is the 128-bit position key from spec.md §3: the high three words of
// the position hash, plus a fourth word folding in the inbound reverse
// move, level and result. Comparing keys lexicographically by word groups
// first by position identity, then by inbound reverse move, then by level,
// then by result.
type Key [4]uint32

// reverseMoveShift places PackedReverseMove (27 bits) above the 4 low bits
// reserved for level/result, so that for a fixed (position, reverse move)
// varying level/result only perturbs the key's lowest 4 bits — the
// invariant spec.md §4.3 states explicitly. (spec.md §3's literal
// "<<9" formula cannot hold simultaneously with that invariant in a
// 32-bit word — see DESIGN.md for the resolution.)
const reverseMoveShift = 4

// NewKey builds a Key with level/result zeroed (word 3 holds only the
// packed reverse move). Used internally; callers building entries should
// use NewKeyWithMetadata.
func NewKey(hash Hash128, rmove PackedReverseMove) Key {
	return Key{hash[0], hash[1], hash[2], uint32(rmove) << reverseMoveShift}
}

// NewKeyWithMetadata builds the full Key used for entries: position hash
// words 0-2, and word 3 = (rmove << 4) | (level << 2) | result.
func NewKeyWithMetadata(hash Hash128, rmove PackedReverseMove, level Level, result Result) Key {
	w3 := uint32(rmove)<<reverseMoveShift | uint32(level&0x3)<<2 | uint32(result&0x3)
	return Key{hash[0], hash[1], hash[2], w3}
}

// ReverseMove extracts the packed reverse move folded into word 3.
func (k Key) ReverseMove() PackedReverseMove {
	return PackedReverseMove(k[3] >> reverseMoveShift)
}

// Level extracts the level folded into word 3.
func (k Key) Level() Level {
	return Level((k[3] >> 2) & 0x3)
}

// Result extracts the result folded into word 3.
func (k Key) Result() Result {
	return Result(k[3] & 0x3)
}

// LessWithoutReverseMove compares only the first three words — the
// comparator the sparse index (spec.md §4.5) uses so a single probe locates
// every entry for a position regardless of inbound reverse move.
func LessWithoutReverseMove(a, b Key) bool {
	for i := 0; i < 3; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// EqualWithoutReverseMove reports whether a and b identify the same
// position, ignoring reverse move/level/result.
func EqualWithoutReverseMove(a, b Key) bool {
	return a[0] == b[0] && a[1] == b[1] && a[2] == b[2]
}

// EqualWithReverseMove reports whether a and b identify the same position
// AND arrived via the same inbound reverse move (level/result ignored).
func EqualWithReverseMove(a, b Key) bool {
	return EqualWithoutReverseMove(a, b) && a.ReverseMove() == b.ReverseMove()
}

// LessFull compares all four words — the canonical run-file order.
func LessFull(a, b Key) bool {
	for i := 0; i < 4; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// EqualFull reports whether a and b are identical in all four words —
// position, reverse move, level and result all match.
func EqualFull(a, b Key) bool {
	return a == b
}

// Bytes serializes the key as 16 little-endian bytes (word 0 first), the
// on-disk layout for run files and sparse index sidecars.
func (k Key) Bytes() [16]byte {
	var out [16]byte
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint32(out[i*4:i*4+4], k[i])
	}
	return out
}

// KeyFromBytes is the inverse of Key.Bytes.
func KeyFromBytes(b [16]byte) Key {
	var k Key
	for i := 0; i < 4; i++ {
		k[i] = binary.LittleEndian.Uint32(b[i*4 : i*4+4])
	}
	return k
}
