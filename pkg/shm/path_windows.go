//go:build windows

package shm

// DefaultPath is the conventional file-mapping name shared with the co-simulator.
const DefaultPath = `Local\cosim-ram`
