package bitstream

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadBits(t *testing.T) {
	cases := []struct {
		value  uint64
		length int
	}{
		{0, 0},
		{1, 1},
		{0, 8},
		{0xFF, 8},
		{0xDEADBEEF, 32},
		{1<<64 - 1, 64},
		{0, 64},
	}
	for _, c := range cases {
		bs := New(0)
		bs.WriteBits(c.value, c.length)
		require.Equal(t, c.length, bs.NumBits())
		mask := uint64(1<<c.length - 1)
		if c.length == 64 {
			mask = ^uint64(0)
		}
		got := bs.ReadBits(0, c.length)
		require.Equal(t, c.value&mask, got)
	}
}

func TestWriteBitRepeated(t *testing.T) {
	bs := New(0)
	bs.WriteBitRepeated(true, 5)
	bs.WriteBitRepeated(false, 3)
	require.Equal(t, 8, bs.NumBits())
	require.Equal(t, 5, bs.CountConsecutive(0, true))
	require.Equal(t, 3, bs.CountConsecutive(5, false))
}

func TestRoundTripBytes(t *testing.T) {
	bs := New(0)
	bs.WriteBits(0b101, 3)
	bs.WriteBits(0xABCD, 16)
	bs.WriteBit(true)

	buf := make([]byte, (bs.NumBits()+7)/8)
	n := bs.ToBytes(buf)
	require.Equal(t, len(buf), n)

	restored := FromBytes(buf, bs.NumBits())
	require.True(t, bs.Equal(restored))
}

func TestSequentialReader(t *testing.T) {
	bs := New(0)
	bs.WriteBits(0b110, 3)
	bs.WriteBit(false)
	bs.WriteBits(42, 8)

	r := NewSequentialReader(bs)
	v, err := r.ReadBits(3)
	require.NoError(t, err)
	require.Equal(t, uint64(0b110), v)

	skipped := r.SkipBitsWhileEqualTo(false)
	require.Equal(t, 3, skipped)

	v, err = r.ReadBits(6)
	require.NoError(t, err)
	require.Equal(t, uint64(42), v)

	require.False(t, r.HasNext(1))
	_, err = r.ReadBit()
	require.ErrorIs(t, err, ErrOutOfRange)
}
