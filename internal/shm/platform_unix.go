//go:build unix

package shm

import (
	"fmt"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

type hostPlatform struct{}

// views maps the data pointer of each window returned by Map to the full,
// page-aligned mapping that backs it.
var views = struct {
	sync.Mutex
	m map[uintptr][]byte
}{m: make(map[uintptr][]byte)}

// Open opens an existing backing object (unix implementation).
func (hostPlatform) Open(path string) (Handle, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	return Handle(fd), nil
}

// Map maps a window of the backing object with MAP_SHARED (unix implementation).
// The offset need not be page aligned.
func (hostPlatform) Map(h Handle, offset int64, size int) ([]byte, error) {
	delta := int(offset % int64(os.Getpagesize()))
	mem, err := unix.Mmap(int(h), offset-int64(delta), size+delta, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}
	window := mem[delta : delta+size : delta+size]
	views.Lock()
	views.m[uintptr(unsafe.Pointer(unsafe.SliceData(window)))] = mem
	views.Unlock()
	return window, nil
}

// Unmap unmaps a window returned by Map (unix implementation).
func (hostPlatform) Unmap(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	key := uintptr(unsafe.Pointer(unsafe.SliceData(mem)))
	views.Lock()
	full, ok := views.m[key]
	delete(views.m, key)
	views.Unlock()
	if !ok {
		return fmt.Errorf("munmap: window %#x was not mapped here", key)
	}
	if err := unix.Munmap(full); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	return nil
}

// Close closes the backing object descriptor (unix implementation).
func (hostPlatform) Close(h Handle) error {
	if err := unix.Close(int(h)); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}
