//go:build windows

package shm

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

type hostPlatform struct{}

// allocationGranularity is the alignment MapViewOfFile requires of file
// offsets. It is 64KiB on every Windows architecture.
const allocationGranularity = 64 << 10

// views maps the data pointer of each window returned by Map to the base
// address of the granularity-aligned view that backs it.
var views = struct {
	sync.Mutex
	m map[uintptr]uintptr
}{m: make(map[uintptr]uintptr)}

// Open opens an existing named file mapping (Windows implementation).
// The path is used as the mapping name, e.g. `Local\cosim-ram`.
func (hostPlatform) Open(path string) (Handle, error) {
	name, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	h, err := windows.OpenFileMapping(windows.FILE_MAP_READ|windows.FILE_MAP_WRITE, false, name)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	return Handle(h), nil
}

// Map maps a view of the file mapping (Windows implementation). The offset
// need not be aligned to the allocation granularity.
func (hostPlatform) Map(h Handle, offset int64, size int) ([]byte, error) {
	delta := offset % allocationGranularity
	aligned := uint64(offset - delta)
	addr, err := windows.MapViewOfFile(windows.Handle(h), windows.FILE_MAP_READ|windows.FILE_MAP_WRITE,
		uint32(aligned>>32), uint32(aligned), uintptr(int64(size)+delta))
	if err != nil {
		return nil, fmt.Errorf("MapViewOfFile: %w", err)
	}
	data := addr + uintptr(delta)
	views.Lock()
	views.m[data] = addr
	views.Unlock()
	return unsafe.Slice((*byte)(unsafe.Pointer(data)), size), nil
}

// Unmap unmaps a view returned by Map (Windows implementation).
func (hostPlatform) Unmap(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	key := uintptr(unsafe.Pointer(unsafe.SliceData(mem)))
	views.Lock()
	base, ok := views.m[key]
	delete(views.m, key)
	views.Unlock()
	if !ok {
		return fmt.Errorf("UnmapViewOfFile: view %#x was not mapped here", key)
	}
	if err := windows.UnmapViewOfFile(base); err != nil {
		return fmt.Errorf("UnmapViewOfFile: %w", err)
	}
	return nil
}

// Close closes the file-mapping handle (Windows implementation).
func (hostPlatform) Close(h Handle) error {
	if err := windows.CloseHandle(windows.Handle(h)); err != nil {
		return fmt.Errorf("CloseHandle: %w", err)
	}
	return nil
}
