package shm

import (
	"sync/atomic"
	"unsafe"
)

// Aligned reports whether p is aligned to width bytes. width must be a power of two.
func Aligned(p unsafe.Pointer, width uintptr) bool {
	return uintptr(p)&(width-1) == 0
}

// AtomicLoadUint32 loads a uint32 from shared memory atomically. p must be 4-byte aligned.
func AtomicLoadUint32(p unsafe.Pointer) uint32 {
	return atomic.LoadUint32((*uint32)(p))
}

// AtomicStoreUint32 stores a uint32 to shared memory atomically. p must be 4-byte aligned.
func AtomicStoreUint32(p unsafe.Pointer, v uint32) {
	atomic.StoreUint32((*uint32)(p), v)
}

// AtomicLoadUint64 loads a uint64 from shared memory atomically. p must be 8-byte aligned.
func AtomicLoadUint64(p unsafe.Pointer) uint64 {
	return atomic.LoadUint64((*uint64)(p))
}

// AtomicStoreUint64 stores a uint64 to shared memory atomically. p must be 8-byte aligned.
func AtomicStoreUint64(p unsafe.Pointer, v uint64) {
	atomic.StoreUint64((*uint64)(p), v)
}
