package codec

import (
	"math/bits"

	"github.com/chessdb/chessdb/bitstream"
)

// EliasOmega recursively prefixes x+1 with the bit-length of each previous
// group, terminated by a single zero bit. Four groups cover the full
// 64-bit range.
type EliasOmega struct{}

// omegaGroups returns the sequence of values to be binary-written, ordered
// outermost-group-first (the order they are emitted in), for n = x+1.
func omegaGroups(n uint64) []uint64 {
	var groups []uint64
	cur := n
	for cur != 1 {
		groups = append(groups, cur)
		cur = uint64(bits.Len64(cur) - 1)
	}
	// groups is in generation order [n, N1, N2, ...]; emission order is the
	// reverse, since each step prepends in front of the previous code.
	for i, j := 0, len(groups)-1; i < j; i, j = i+1, j-1 {
		groups[i], groups[j] = groups[j], groups[i]
	}
	return groups
}

func (EliasOmega) Compress(bs *bitstream.BitStream, value uint64) {
	n := value + 1
	for _, g := range omegaGroups(n) {
		bs.WriteBits(g, bits.Len64(g))
	}
	bs.WriteBit(false)
}

func (EliasOmega) Decompress(r *bitstream.SequentialReader) (uint64, error) {
	n := uint64(1)
	for {
		b, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		if !b {
			break
		}
		rest, err := r.ReadBits(int(n))
		if err != nil {
			return 0, err
		}
		n = (uint64(1) << n) | rest
	}
	return n - 1, nil
}

func (EliasOmega) MaxCompressedSizeBits(numBits int) int {
	// Worst case n = 2^numBits (x = 2^numBits - 1); sum the widths of every
	// recursive group plus the terminating bit. For numBits=64 this comes
	// out to well under 100 bits, matching the ≤76 bound cited in spec.md.
	var n uint64
	if numBits >= 64 {
		n = ^uint64(0)
	} else {
		n = uint64(1) << uint(numBits)
	}
	total := 1
	for _, g := range omegaGroups(n) {
		total += bits.Len64(g)
	}
	return total
}
