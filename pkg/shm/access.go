package shm

import (
	"encoding/binary"
	"unsafe"

	internalshm "github.com/srediag/cosim-shm/internal/shm"
)

// Endian is a byte order.
type Endian int

// Byte orders reported by Region.Endianness.
const (
	LittleEndian Endian = iota
	BigEndian
)

func (e Endian) String() string {
	if e == BigEndian {
		return "big-endian"
	}
	return "little-endian"
}

var hostEndian = func() Endian {
	var probe uint16 = 1
	if *(*byte)(unsafe.Pointer(&probe)) == 1 {
		return LittleEndian
	}
	return BigEndian
}()

// Endianness returns the region's byte order, which is always the host's:
// multi-byte accesses go through host-native in-memory representations.
func (r *Region) Endianness() Endian { return hostEndian }

// ByteOrder returns the host-native byte order used by all multi-byte accesses.
func (r *Region) ByteOrder() binary.ByteOrder { return binary.NativeEndian }

func (r *Region) at(off uint64) unsafe.Pointer {
	return unsafe.Add(r.base, off)
}

func bytesAt(p unsafe.Pointer, n int) []byte {
	return unsafe.Slice((*byte)(p), n)
}

// Read8 reads the byte at off.
func (r *Region) Read8(off uint64) uint8 {
	r.metrics.reads.Inc()
	return *(*uint8)(r.at(off))
}

// Read16 reads a host-order 16-bit word at off.
func (r *Region) Read16(off uint64) uint16 {
	r.metrics.reads.Inc()
	p := r.at(off)
	if internalshm.Aligned(p, 2) {
		return *(*uint16)(p)
	}
	return binary.NativeEndian.Uint16(bytesAt(p, 2))
}

// Read32 reads a host-order 32-bit word at off. Aligned reads are atomic.
func (r *Region) Read32(off uint64) uint32 {
	r.metrics.reads.Inc()
	p := r.at(off)
	if internalshm.Aligned(p, 4) {
		return internalshm.AtomicLoadUint32(p)
	}
	return binary.NativeEndian.Uint32(bytesAt(p, 4))
}

// Read64 reads a host-order 64-bit word at off. Aligned reads are atomic.
func (r *Region) Read64(off uint64) uint64 {
	r.metrics.reads.Inc()
	p := r.at(off)
	if internalshm.Aligned(p, 8) {
		return internalshm.AtomicLoadUint64(p)
	}
	return binary.NativeEndian.Uint64(bytesAt(p, 8))
}

// ReadBytes returns a copy of n bytes starting at off.
func (r *Region) ReadBytes(off uint64, n int) []byte {
	out := make([]byte, n)
	r.ReadInto(off, out)
	return out
}

// ReadInto copies len(dst) bytes starting at off into dst.
func (r *Region) ReadInto(off uint64, dst []byte) {
	r.metrics.reads.Inc()
	if len(dst) == 0 {
		return
	}
	copy(dst, bytesAt(r.at(off), len(dst)))
}

// Write8 writes v at off.
func (r *Region) Write8(off uint64, v uint8) {
	*(*uint8)(r.at(off)) = v
	r.wrote(off, 1)
}

// Write16 writes v in host order at off.
func (r *Region) Write16(off uint64, v uint16) {
	p := r.at(off)
	if internalshm.Aligned(p, 2) {
		*(*uint16)(p) = v
	} else {
		binary.NativeEndian.PutUint16(bytesAt(p, 2), v)
	}
	r.wrote(off, 2)
}

// Write32 writes v in host order at off. Aligned writes are atomic.
func (r *Region) Write32(off uint64, v uint32) {
	p := r.at(off)
	if internalshm.Aligned(p, 4) {
		internalshm.AtomicStoreUint32(p, v)
	} else {
		binary.NativeEndian.PutUint32(bytesAt(p, 4), v)
	}
	r.wrote(off, 4)
}

// Write64 writes v in host order at off. Aligned writes are atomic.
func (r *Region) Write64(off uint64, v uint64) {
	p := r.at(off)
	if internalshm.Aligned(p, 8) {
		internalshm.AtomicStoreUint64(p, v)
	} else {
		binary.NativeEndian.PutUint64(bytesAt(p, 8), v)
	}
	r.wrote(off, 8)
}

// WriteBytes copies p into the region starting at off.
func (r *Region) WriteBytes(off uint64, p []byte) {
	if len(p) == 0 {
		return
	}
	copy(bytesAt(r.at(off), len(p)), p)
	r.wrote(off, len(p))
}

// WriteFrom copies count bytes of src, starting at src[start], into the
// region at off.
func (r *Region) WriteFrom(off uint64, src []byte, start, count int) {
	r.WriteBytes(off, src[start:start+count])
}

// wrote records a write of n bytes at off and invalidates the translation
// caches covering it.
func (r *Region) wrote(off uint64, n int) {
	r.metrics.wrote(n)
	r.notifier.NotifyWrite(off, uint64(n))
}
