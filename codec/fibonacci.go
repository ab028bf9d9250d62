package codec

import "github.com/chessdb/chessdb/bitstream"

// fibTable holds Fibonacci numbers F(2), F(3), F(4), ... (1, 2, 3, 5, 8, ...)
// up to the largest that fits in a uint64, used for Zeckendorf decomposition.
var fibTable = buildFibTable()

func buildFibTable() []uint64 {
	table := []uint64{1, 2}
	for {
		next := table[len(table)-1] + table[len(table)-2]
		if next < table[len(table)-1] { // overflow
			break
		}
		table = append(table, next)
	}
	return table
}

// Fibonacci encodes x+1 as its Zeckendorf representation (a sum of
// non-consecutive Fibonacci numbers), written smallest-digit-first, followed
// by a terminating 1 bit. The largest digit used (fibTable[top]) is always
// set, so writing ascending puts it immediately before the terminator,
// forming an unambiguous "11" pair; Valid Zeckendorf digit sequences never
// contain two consecutive 1 bits among themselves, so that pair can only be
// the terminator.
type Fibonacci struct{}

func (Fibonacci) Compress(bs *bitstream.BitStream, value uint64) {
	n := value + 1

	top := 0
	for i := range fibTable {
		if fibTable[i] <= n {
			top = i
		} else {
			break
		}
	}

	digits := make([]bool, top+1)
	remaining := n
	for i := top; i >= 0; i-- {
		if fibTable[i] <= remaining {
			digits[i] = true
			remaining -= fibTable[i]
		}
	}

	for i := 0; i <= top; i++ {
		bs.WriteBit(digits[i])
	}
	bs.WriteBit(true)
}

func (Fibonacci) Decompress(r *bitstream.SequentialReader) (uint64, error) {
	var digits []bool
	prev := false
	for {
		b, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		if b && prev {
			break
		}
		digits = append(digits, b)
		prev = b
	}

	var n uint64
	for j, d := range digits {
		if d {
			n += fibTable[j]
		}
	}
	return n - 1, nil
}

func (Fibonacci) MaxCompressedSizeBits(numBits int) int {
	// Worst case is the largest n = x+1 a numBits-bit value can produce; its
	// Zeckendorf form uses top+1 digits, where fibTable[top] is the largest
	// Fibonacci number <= n, plus the terminating bit.
	var n uint64
	if numBits >= 64 {
		n = ^uint64(0)
	} else {
		n = uint64(1) << uint(numBits)
	}
	top := 0
	for i := range fibTable {
		if fibTable[i] <= n {
			top = i
		} else {
			break
		}
	}
	return top + 2
}
