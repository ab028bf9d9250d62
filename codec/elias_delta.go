package codec

import (
	"math/bits"

	"github.com/chessdb/chessdb/bitstream"
)

// EliasDelta encodes x by gamma-encoding N = floor(log2(x+1)) and then
// writing the low N bits of x+1 directly.
type EliasDelta struct{}

func (EliasDelta) Compress(bs *bitstream.BitStream, value uint64) {
	n := value + 1
	width := bits.Len64(n)
	nBits := width - 1
	EliasGamma{}.Compress(bs, uint64(nBits))
	if nBits > 0 {
		low := n & (1<<uint(nBits) - 1)
		bs.WriteBits(low, nBits)
	}
}

func (EliasDelta) Decompress(r *bitstream.SequentialReader) (uint64, error) {
	nBits64, err := EliasGamma{}.Decompress(r)
	if err != nil {
		return 0, err
	}
	nBits := int(nBits64)
	var low uint64
	if nBits > 0 {
		low, err = r.ReadBits(nBits)
		if err != nil {
			return 0, err
		}
	}
	n := (uint64(1) << uint(nBits)) | low
	return n - 1, nil
}

func (EliasDelta) MaxCompressedSizeBits(numBits int) int {
	n := bits.Len(uint(numBits)) + 1
	return numBits + 2*n + 1
}
