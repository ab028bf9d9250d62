package codec

import "github.com/chessdb/chessdb/bitstream"

// VarLen splits a value into groups of G data bits, each followed by a
// continuation bit, emitted least-significant-group first. The final
// group's continuation bit is zero.
type VarLen struct {
	G int
}

func (c VarLen) Compress(bs *bitstream.BitStream, value uint64) {
	remaining := value
	for {
		chunk := remaining & (1<<uint(c.G) - 1)
		remaining >>= uint(c.G)
		cont := remaining != 0
		bs.WriteBits(chunk, c.G)
		bs.WriteBit(cont)
		if !cont {
			break
		}
	}
}

func (c VarLen) Decompress(r *bitstream.SequentialReader) (uint64, error) {
	var value uint64
	shift := uint(0)
	for {
		chunk, err := r.ReadBits(c.G)
		if err != nil {
			return 0, err
		}
		cont, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		value |= chunk << shift
		shift += uint(c.G)
		if !cont {
			break
		}
	}
	return value, nil
}

func (c VarLen) MaxCompressedSizeBits(numBits int) int {
	groups := (numBits + c.G - 1) / c.G
	if groups < 1 {
		groups = 1
	}
	return groups * (c.G + 1)
}
