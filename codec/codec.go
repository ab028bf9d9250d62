// Package codec implements the universal integer codecs used to compress
// auxiliary structures: Elias gamma/delta/omega, Fibonacci, exp-Golomb and a
// group-continuation VarLen family. The Elias codes and Fibonacci encode an
// unsigned value x as x+1 >= 1; ExpGolomb gamma-codes the quotient x>>K
// (so as quotient+1) and writes the low K bits raw; VarLen writes x itself
// in G-bit groups.
package codec

import "github.com/chessdb/chessdb/bitstream"

// Codec is implemented by every integer codec in this package. Compress
// never fails (the bitstream grows unbounded); Decompress can fail only if
// the underlying stream runs out of bits.
type Codec interface {
	Compress(bs *bitstream.BitStream, value uint64)
	Decompress(r *bitstream.SequentialReader) (uint64, error)
	// MaxCompressedSizeBits returns a static upper bound on the number of
	// bits needed to encode any value representable in numBits bits.
	MaxCompressedSizeBits(numBits int) int
}

// CompressArray writes each element of values in order, with no length
// prefix — the caller already knows the array's fixed size N.
func CompressArray(c Codec, bs *bitstream.BitStream, values []uint64) {
	for _, v := range values {
		c.Compress(bs, v)
	}
}

// DecompressArray reads exactly n elements written by CompressArray.
func DecompressArray(c Codec, r *bitstream.SequentialReader, n int) ([]uint64, error) {
	out := make([]uint64, n)
	for i := range out {
		v, err := c.Decompress(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// CompressVector writes the length of values, incremented by one, using the
// same codec, followed by the elements in order.
func CompressVector(c Codec, bs *bitstream.BitStream, values []uint64) {
	c.Compress(bs, uint64(len(values))+1)
	CompressArray(c, bs, values)
}

// DecompressVector is the inverse of CompressVector.
func DecompressVector(c Codec, r *bitstream.SequentialReader) ([]uint64, error) {
	nPlusOne, err := c.Decompress(r)
	if err != nil {
		return nil, err
	}
	return DecompressArray(c, r, int(nPlusOne-1))
}
