package shm

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessRoundTrip(t *testing.T) {
	const size = 256
	r, _, backing := openMemRegion(t, size, nil)

	for off := uint64(0); off < size; off++ {
		v := uint8(off*7 + 1)
		r.Write8(off, v)
		require.Equal(t, v, r.Read8(off), "off=%d", off)
		require.Equal(t, v, backing[off])
	}
	for off := uint64(0); off+2 <= size; off++ {
		v := uint16(0xa5c3 ^ off)
		r.Write16(off, v)
		require.Equal(t, v, r.Read16(off), "off=%d", off)
		require.Equal(t, v, binary.NativeEndian.Uint16(backing[off:]), "off=%d", off)
	}
	for off := uint64(0); off+4 <= size; off++ {
		v := uint32(0xdeadbeef ^ off<<3)
		r.Write32(off, v)
		require.Equal(t, v, r.Read32(off), "off=%d", off)
		require.Equal(t, v, binary.NativeEndian.Uint32(backing[off:]), "off=%d", off)
	}
	for off := uint64(0); off+8 <= size; off++ {
		v := uint64(0x0123456789abcdef) ^ off<<17
		r.Write64(off, v)
		require.Equal(t, v, r.Read64(off), "off=%d", off)
		require.Equal(t, v, binary.NativeEndian.Uint64(backing[off:]), "off=%d", off)
	}
}

func TestAccessSpans(t *testing.T) {
	r, _, backing := openMemRegion(t, 4096, nil)

	r.WriteBytes(100, []byte("hello world"))
	assert.Equal(t, []byte("hello world"), backing[100:111])
	assert.Equal(t, []byte("hello world"), r.ReadBytes(100, 11))

	r.WriteFrom(200, []byte("xxshared ramyy"), 2, 10)
	assert.Equal(t, []byte("shared ram"), r.ReadBytes(200, 10))
	assert.Equal(t, byte(0), backing[210])

	dst := make([]byte, 5)
	r.ReadInto(106, dst)
	assert.Equal(t, []byte("world"), dst)

	assert.Empty(t, r.ReadBytes(0, 0))
}

func TestEndianness(t *testing.T) {
	r, _, _ := openMemRegion(t, 4096, nil)
	want := BigEndian
	if binary.NativeEndian.Uint16([]byte{1, 0}) == 1 {
		want = LittleEndian
	}
	assert.Equal(t, want, r.Endianness())
	assert.Equal(t, binary.NativeEndian.String(), r.ByteOrder().String())
}
