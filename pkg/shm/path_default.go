//go:build !windows

package shm

// DefaultPath is the conventional backing object shared with the co-simulator.
const DefaultPath = "/dev/shm/cosim-ram"
