package codec

import "github.com/chessdb/chessdb/bitstream"

// ExpGolomb implements exponential Golomb coding with parameter K: the
// quotient x>>K is gamma-encoded, followed by the raw low K bits of x.
type ExpGolomb struct {
	K int
}

func (c ExpGolomb) Compress(bs *bitstream.BitStream, value uint64) {
	q := value >> uint(c.K)
	EliasGamma{}.Compress(bs, q)
	if c.K > 0 {
		bs.WriteBits(value&(1<<uint(c.K)-1), c.K)
	}
}

func (c ExpGolomb) Decompress(r *bitstream.SequentialReader) (uint64, error) {
	q, err := EliasGamma{}.Decompress(r)
	if err != nil {
		return 0, err
	}
	var low uint64
	if c.K > 0 {
		low, err = r.ReadBits(c.K)
		if err != nil {
			return 0, err
		}
	}
	return (q << uint(c.K)) | low, nil
}

func (c ExpGolomb) MaxCompressedSizeBits(numBits int) int {
	quotientBits := numBits - c.K
	if quotientBits < 0 {
		quotientBits = 0
	}
	return EliasGamma{}.MaxCompressedSizeBits(quotientBits) + c.K
}
