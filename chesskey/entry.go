package chesskey

import (
	"encoding/binary"
	"fmt"
)

// GameOffsetInvalid is the sentinel game offset meaning "no stored game",
// which Unpack returns when count and offset did not fit together and the
// offset was dropped, keeping a count without a matching offset. Chosen as the maximum uint64 so that a plain min() in Combine
// prefers any valid offset over it, with no special-case branch needed.
const GameOffsetInvalid = ^uint64(0)

// widthBits is the number of low bits PackedCountAndGameOffset reserves to
// record s, the number of bits count was packed with. spec.md §3 calls
// this "bit-packed count+offset with a self-describing width field".
const widthBits = 6

// dataBits is the number of bits left for count and offset together once
// widthBits is taken out of the 64-bit word.
const dataBits = 64 - widthBits

// overflowTag is the sentinel value of s meaning count and offset together
// didn't fit in dataBits bits: count took all dataBits bits and offset was
// dropped in favor of the reserved invalid sentinel (spec.md §3: "If both
// together do not fit, s = 58, count takes all data bits, and game-offset
// becomes the reserved sentinel 'invalid'"). This is a distinct tag value
// from dataBits itself (a legitimate s when count alone needs every data
// bit and offset is exactly zero), so that case still round-trips exactly
// instead of being conflated with genuine overflow.
const overflowTag = dataBits + 1

// PackedCountAndGameOffset is the 64-bit bit-packed [count, offset] pair
// from spec.md §3: the low widthBits bits store s, the number of bits
// count occupies; the next s bits store count; the remaining
// dataBits-s bits store offset. When count and offset together don't fit
// in dataBits bits, s is pinned to overflowTag and offset is dropped in
// favor of the invalid sentinel.
type PackedCountAndGameOffset uint64

// Pack packs count and offset with the narrowest s that fits both. It
// only errors if count itself needs more than dataBits bits, which no
// caller should ever produce.
func Pack(count uint64, offset uint64) (PackedCountAndGameOffset, error) {
	s := bitLen(count)
	if s > dataBits {
		return 0, fmt.Errorf("chesskey: count=%d needs more than %d bits", count, dataBits)
	}
	if !fits(offset, dataBits-s) {
		v := uint64(overflowTag) | (count << widthBits)
		return PackedCountAndGameOffset(v), nil
	}
	v := uint64(s) | (count << widthBits) | (offset << uint(widthBits+s))
	return PackedCountAndGameOffset(v), nil
}

// PackSingle packs an entry for a single observed game (count=1).
func PackSingle(offset uint64) (PackedCountAndGameOffset, error) {
	return Pack(1, offset)
}

// bitLen returns the number of bits needed to represent v (0 for v == 0).
func bitLen(v uint64) int {
	n := 0
	for v > 0 {
		n++
		v >>= 1
	}
	return n
}

func fits(v uint64, bits int) bool {
	if bits >= 64 {
		return true
	}
	return v < (uint64(1) << uint(bits))
}

// Unpack recovers the count and offset. When the stored s is overflowTag,
// offset was never encoded and GameOffsetInvalid is returned in its place.
func (p PackedCountAndGameOffset) Unpack() (count uint64, offset uint64) {
	v := uint64(p)
	s := v & (1<<widthBits - 1)
	if s == overflowTag {
		count = (v >> widthBits) & (uint64(1)<<uint(dataBits) - 1)
		return count, GameOffsetInvalid
	}
	count = (v >> widthBits) & (uint64(1)<<s - 1)
	offset = (v >> uint(widthBits+s)) & (uint64(1)<<uint(dataBits-s) - 1)
	return count, offset
}

// Combine merges two entries seen for the same key: counts add, and the
// offset is the minimum of the two non-sentinel offsets (or
// GameOffsetInvalid if neither is valid). Combine is associative and
// commutative, so runs can be merged pairwise in any order (spec.md §4.6,
// §8).
func (p PackedCountAndGameOffset) Combine(other PackedCountAndGameOffset) (PackedCountAndGameOffset, error) {
	c1, o1 := p.Unpack()
	c2, o2 := other.Unpack()
	offset := o1
	if o2 < offset {
		offset = o2
	}
	return Pack(c1+c2, offset)
}

// Entry is a single run-file record: a 128-bit Key followed by its packed
// count+offset, the unit the external sort-merge pipeline moves, sorts and
// combines (spec.md §4.6, §4.7).
type Entry struct {
	Key   Key
	Count PackedCountAndGameOffset
}

// NewEntry builds a single-observation Entry (count=1) for the given key
// and game offset.
func NewEntry(key Key, offset uint64) (Entry, error) {
	c, err := PackSingle(offset)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Key: key, Count: c}, nil
}

// Combine merges two entries that share a Key, combining their counts.
// Callers are responsible for only combining entries with equal keys
// (EqualFull) — this is the monoid operation the sort-merge pipeline folds
// over each run of equal keys with.
func (e Entry) Combine(other Entry) (Entry, error) {
	c, err := e.Count.Combine(other.Count)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Key: e.Key, Count: c}, nil
}

// Bytes serializes the entry as its 16-byte key followed by its 8-byte
// packed count+offset, little-endian — the on-disk run-file record layout.
func (e Entry) Bytes() [24]byte {
	var out [24]byte
	kb := e.Key.Bytes()
	copy(out[:16], kb[:])
	binary.LittleEndian.PutUint64(out[16:24], uint64(e.Count))
	return out
}

// EntryFromBytes is the inverse of Entry.Bytes.
func EntryFromBytes(b [24]byte) Entry {
	var kb [16]byte
	copy(kb[:], b[:16])
	v := binary.LittleEndian.Uint64(b[16:24])
	return Entry{Key: KeyFromBytes(kb), Count: PackedCountAndGameOffset(v)}
}
