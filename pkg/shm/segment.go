package shm

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/Workiva/go-datastructures/bitarray"
)

// Segment sizing heuristic bounds.
const (
	MinSegmentSize     = 64 << 10
	MaxSegmentSize     = 16 << 20
	SegmentAlignment   = 64 << 10
	TargetSegmentCount = 16
)

// SegmentSizeFor returns the segment size for a region of total bytes. A
// non-zero override is used as is. Otherwise total/16 is clamped to
// [64KiB, 16MiB] and rounded up to a multiple of 64KiB.
func SegmentSizeFor(total, override uint64) uint64 {
	if override != 0 {
		return override
	}
	size := total / TargetSegmentCount
	if size < MinSegmentSize {
		size = MinSegmentSize
	}
	if size > MaxSegmentSize {
		size = MaxSegmentSize
	}
	return (size + SegmentAlignment - 1) / SegmentAlignment * SegmentAlignment
}

// Segment describes one fixed-size subdivision of a region.
type Segment struct {
	Index  int
	Offset uint64
	Size   uint64
}

// SegmentIndex partitions a mapped region into segments and lazily
// materializes a direct pointer per segment.
//
// Touch is safe for concurrent use; concurrent first touches of one index
// compute and store the same pointer.
type SegmentIndex struct {
	base        unsafe.Pointer
	total       uint64
	segmentSize uint64
	segments    []Segment
	pointers    []atomic.Pointer[byte]

	mu      sync.Mutex
	touched bitarray.BitArray
	onTouch func()
}

func newSegmentIndex(base unsafe.Pointer, total, segmentSize uint64) *SegmentIndex {
	count := (total + segmentSize - 1) / segmentSize
	segments := make([]Segment, count)
	for i := range segments {
		off := uint64(i) * segmentSize
		size := segmentSize
		if rem := total - off; rem < segmentSize {
			size = rem
		}
		segments[i] = Segment{Index: i, Offset: off, Size: size}
	}
	return &SegmentIndex{
		base:        base,
		total:       total,
		segmentSize: segmentSize,
		segments:    segments,
		pointers:    make([]atomic.Pointer[byte], count),
		touched:     bitarray.NewBitArray(count),
	}
}

// Count returns the number of segments.
func (x *SegmentIndex) Count() int { return len(x.segments) }

// SegmentSize returns the size shared by all segments but possibly the last.
func (x *SegmentIndex) SegmentSize() uint64 { return x.segmentSize }

// Describe returns segment i.
func (x *SegmentIndex) Describe(i int) Segment { return x.segments[i] }

// Segments returns a copy of all segment descriptors in index order.
func (x *SegmentIndex) Segments() []Segment {
	out := make([]Segment, len(x.segments))
	copy(out, x.segments)
	return out
}

// Touch materializes and caches the pointer to segment i and returns it.
// Repeated calls return the same pointer without further work.
func (x *SegmentIndex) Touch(i int) unsafe.Pointer {
	if p := x.pointers[i].Load(); p != nil {
		return unsafe.Pointer(p)
	}
	p := (*byte)(unsafe.Add(x.base, x.segments[i].Offset))
	if !x.pointers[i].CompareAndSwap(nil, p) {
		return unsafe.Pointer(x.pointers[i].Load())
	}
	x.mu.Lock()
	_ = x.touched.SetBit(uint64(i))
	x.mu.Unlock()
	if x.onTouch != nil {
		x.onTouch()
	}
	return unsafe.Pointer(p)
}

// Pointer returns the cached pointer of segment i, or nil if it has not been
// touched. Zero-copy consumers must Touch first.
func (x *SegmentIndex) Pointer(i int) unsafe.Pointer {
	return unsafe.Pointer(x.pointers[i].Load())
}

// Bytes returns a zero-copy view of touched segment i, or nil if untouched.
func (x *SegmentIndex) Bytes(i int) []byte {
	p := x.pointers[i].Load()
	if p == nil {
		return nil
	}
	return unsafe.Slice(p, x.segments[i].Size)
}

// Touched returns the indices of materialized segments in ascending order.
func (x *SegmentIndex) Touched() []int {
	x.mu.Lock()
	nums := x.touched.ToNums()
	x.mu.Unlock()
	out := make([]int, len(nums))
	for i, n := range nums {
		out[i] = int(n)
	}
	return out
}
