package shm

import (
	"fmt"
	"io/fs"
	"sync"
)

// MemoryPlatform is an in-process Platform. Backing objects are plain byte
// slices; every Map of the same object aliases the same storage, which is how
// two regions opened on one object observe each other's writes.
type MemoryPlatform struct {
	mu      sync.Mutex
	objects map[string][]byte
	handles map[Handle]string
	next    Handle

	// MapErr, when set, is returned by every Map call.
	MapErr error

	opens, maps, unmaps, closes int
}

// NewMemoryPlatform returns an empty MemoryPlatform.
func NewMemoryPlatform() *MemoryPlatform {
	return &MemoryPlatform{
		objects: make(map[string][]byte),
		handles: make(map[Handle]string),
		next:    1,
	}
}

// Create adds a zeroed backing object of the given size, standing in for the
// counterpart process that owns it. It returns the backing storage.
func (p *MemoryPlatform) Create(path string, size int) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	mem := make([]byte, size)
	p.objects[path] = mem
	return mem
}

// Open implements Platform.
func (p *MemoryPlatform) Open(path string) (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.objects[path]; !ok {
		return 0, fmt.Errorf("open %s: %w", path, fs.ErrNotExist)
	}
	h := p.next
	p.next++
	p.handles[h] = path
	p.opens++
	return h, nil
}

// Map implements Platform.
func (p *MemoryPlatform) Map(h Handle, offset int64, size int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.MapErr != nil {
		return nil, p.MapErr
	}
	path, ok := p.handles[h]
	if !ok {
		return nil, fmt.Errorf("mmap: %w", fs.ErrClosed)
	}
	obj := p.objects[path]
	if offset < 0 || size <= 0 || offset+int64(size) > int64(len(obj)) {
		return nil, fmt.Errorf("mmap: window [%d,%d) outside object of %d bytes", offset, offset+int64(size), len(obj))
	}
	p.maps++
	return obj[offset : offset+int64(size) : offset+int64(size)], nil
}

// Unmap implements Platform.
func (p *MemoryPlatform) Unmap(mem []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(mem) == 0 {
		return nil
	}
	p.unmaps++
	return nil
}

// Close implements Platform. Closing an unknown handle fails, which makes a
// double close visible to tests.
func (p *MemoryPlatform) Close(h Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.handles[h]; !ok {
		return fmt.Errorf("close: %w", fs.ErrClosed)
	}
	delete(p.handles, h)
	p.closes++
	return nil
}

// Stats reports how many times each Platform operation succeeded.
func (p *MemoryPlatform) Stats() (opens, maps, unmaps, closes int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opens, p.maps, p.unmaps, p.closes
}

// OpenHandles reports the number of handles not yet closed.
func (p *MemoryPlatform) OpenHandles() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles)
}

