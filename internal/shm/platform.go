// Package shm contains the platform boundary for mapping host shared memory.
//
// Everything that touches the operating system's shared-memory facility goes
// through Platform, so the region logic in pkg/shm can run against the
// in-memory MemoryPlatform under test.
package shm

// Handle is an opaque platform handle for an opened backing object
// (a file descriptor on unix, a file-mapping HANDLE on windows).
type Handle uintptr

// Platform opens and maps shared-memory backing objects. Backing objects are
// never created or resized here; the counterpart process owns them.
type Platform interface {
	// Open opens an existing backing object read-write.
	Open(path string) (Handle, error)
	// Map maps size bytes of the backing object starting at offset with a
	// shareable mapping.
	Map(h Handle, offset int64, size int) ([]byte, error)
	// Unmap releases a mapping returned by Map.
	Unmap(mem []byte) error
	// Close closes the backing object handle.
	Close(h Handle) error
}

// Host returns the Platform backed by the operating system.
func Host() Platform {
	return hostPlatform{}
}
