package codec

import (
	"testing"

	"github.com/chessdb/chessdb/bitstream"
	"github.com/stretchr/testify/require"
)

func roundTripValues() []uint64 {
	values := []uint64{0, 1, 2, 3, 4, 5, 7, 8, 15, 16, 31, 32, 63, 64, 100, 127, 128, 255, 256,
		1000, 1 << 16, 1<<32 - 1, 1 << 32, 1 << 40, 1<<63 - 1}
	return values
}

func testRoundTrip(t *testing.T, name string, c Codec) {
	t.Run(name, func(t *testing.T) {
		for _, v := range roundTripValues() {
			bs := bitstream.New(0)
			c.Compress(bs, v)
			r := bitstream.NewSequentialReader(bs)
			got, err := c.Decompress(r)
			require.NoError(t, err, "value %d", v)
			require.Equal(t, v, got, "value %d", v)
			require.Equal(t, bs.NumBits(), r.Pos(), "decoder should consume exactly what was written for %d", v)
		}
	})
}

func TestCodecsRoundTrip(t *testing.T) {
	testRoundTrip(t, "EliasGamma", EliasGamma{})
	testRoundTrip(t, "EliasDelta", EliasDelta{})
	testRoundTrip(t, "EliasOmega", EliasOmega{})
	testRoundTrip(t, "Fibonacci", Fibonacci{})
	testRoundTrip(t, "ExpGolomb0", ExpGolomb{K: 0})
	testRoundTrip(t, "ExpGolomb3", ExpGolomb{K: 3})
	testRoundTrip(t, "ExpGolomb10", ExpGolomb{K: 10})
	testRoundTrip(t, "VarLen4", VarLen{G: 4})
	testRoundTrip(t, "VarLen7", VarLen{G: 7})
}

func TestArrayRoundTrip(t *testing.T) {
	values := []uint64{5, 0, 1000, 42}
	bs := bitstream.New(0)
	CompressArray(EliasDelta{}, bs, values)
	r := bitstream.NewSequentialReader(bs)
	got, err := DecompressArray(EliasDelta{}, r, len(values))
	require.NoError(t, err)
	require.Equal(t, values, got)
}

func TestVectorRoundTrip(t *testing.T) {
	for _, values := range [][]uint64{nil, {1}, {1, 2, 3, 4, 5}} {
		bs := bitstream.New(0)
		CompressVector(Fibonacci{}, bs, values)
		r := bitstream.NewSequentialReader(bs)
		got, err := DecompressVector(Fibonacci{}, r)
		require.NoError(t, err)
		require.Equal(t, len(values), len(got))
		for i := range values {
			require.Equal(t, values[i], got[i])
		}
	}
}
