package codec

import (
	"math/bits"

	"github.com/chessdb/chessdb/bitstream"
)

// EliasGamma encodes x as N zero bits (N = floor(log2(x+1))) followed by
// x+1 written in N+1 bits.
type EliasGamma struct{}

func (EliasGamma) Compress(bs *bitstream.BitStream, value uint64) {
	n := value + 1
	width := bits.Len64(n)
	bs.WriteBitRepeated(false, width-1)
	bs.WriteBits(n, width)
}

func (EliasGamma) Decompress(r *bitstream.SequentialReader) (uint64, error) {
	zeros := r.SkipBitsWhileEqualTo(false)
	n, err := r.ReadBits(zeros + 1)
	if err != nil {
		return 0, err
	}
	return n - 1, nil
}

func (EliasGamma) MaxCompressedSizeBits(numBits int) int {
	return 2*numBits + 1
}
