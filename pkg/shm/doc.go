// Package shm exposes a window of host shared memory as guest RAM for a
// simulated machine, so that an instruction-set emulator and a companion
// co-simulator mapping the same backing object observe one coherent memory.
//
// A Region is opened from a Config, partitioned into segments that can be
// materialized into direct pointers for zero-copy consumers, and read or
// written at byte offsets in host byte order. Every write invalidates the
// translation caches of the owning machine's execution units over each
// address at which the region is registered.
//
// Example usage:
//
//	cfg := shm.DefaultConfig()
//	cfg.Size = 64 << 20
//	cfg.Machine = machine
//	r, err := shm.Open(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer r.Dispose()
//	r.Write32(0x100, 0xdeadbeef)
//
// Platform-specific mapping is in internal/shm.
package shm
