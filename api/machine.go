// Package api defines the contracts between a shared-memory region and the machine that owns it.
package api

// Peripheral identifies a region to the address-space router.
type Peripheral interface {
	Name() string
	Size() uint64
}

// ExecutionUnit is a processing unit attached to a machine. The region never
// owns execution units; it only queries them for optional capabilities.
type ExecutionUnit interface {
	Name() string
}

// TranslationCacheInvalidator is implemented by execution units that cache
// decoded instructions keyed by guest address. Units without a translation
// cache simply do not implement it.
type TranslationCacheInvalidator interface {
	// InvalidateTranslationCache drops cached translations covering the
	// guest address range [start, end).
	InvalidateTranslationCache(start, end uint64)
}

// AddressRouter resolves where peripherals are mapped in the simulated address space.
type AddressRouter interface {
	// RegistrationPoints returns every base address at which p is registered.
	RegistrationPoints(p Peripheral) []uint64
}

// TopologyNotifier is an optional AddressRouter capability. Subscribers are
// called after any registration is added, moved or removed.
type TopologyNotifier interface {
	OnTopologyChange(fn func())
}

// Machine is the owning context of a region.
type Machine interface {
	ExecutionUnits() []ExecutionUnit
	Router() AddressRouter
}
