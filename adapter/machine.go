// Package adapter provides adapters for cosim-shm integration with external systems.
package adapter

import (
	"slices"
	"sync"

	"github.com/srediag/cosim-shm/api"
)

// StaticRouter is an api.AddressRouter backed by an explicit table of
// registration points per peripheral name. It notifies subscribers on every
// change.
type StaticRouter struct {
	mu          sync.RWMutex
	points      map[string][]uint64
	subscribers []func()
}

// NewStaticRouter returns an empty router.
func NewStaticRouter() *StaticRouter {
	return &StaticRouter{points: make(map[string][]uint64)}
}

// Register adds base as a registration point of the peripheral named name.
func (r *StaticRouter) Register(name string, base uint64) {
	r.mu.Lock()
	if slices.Contains(r.points[name], base) {
		r.mu.Unlock()
		return
	}
	r.points[name] = append(r.points[name], base)
	r.mu.Unlock()
	r.notify()
}

// Unregister removes base from the peripheral named name.
func (r *StaticRouter) Unregister(name string, base uint64) {
	r.mu.Lock()
	pts := r.points[name]
	i := slices.Index(pts, base)
	if i < 0 {
		r.mu.Unlock()
		return
	}
	r.points[name] = slices.Delete(pts, i, i+1)
	r.mu.Unlock()
	r.notify()
}

// RegistrationPoints implements api.AddressRouter.
func (r *StaticRouter) RegistrationPoints(p api.Peripheral) []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.points[p.Name()])
}

// OnTopologyChange implements api.TopologyNotifier.
func (r *StaticRouter) OnTopologyChange(fn func()) {
	r.mu.Lock()
	r.subscribers = append(r.subscribers, fn)
	r.mu.Unlock()
}

func (r *StaticRouter) notify() {
	r.mu.RLock()
	subs := slices.Clone(r.subscribers)
	r.mu.RUnlock()
	for _, fn := range subs {
		fn()
	}
}

// StaticMachine is an api.Machine with a fixed router and a mutable list of
// execution units.
type StaticMachine struct {
	mu     sync.RWMutex
	router api.AddressRouter
	units  []api.ExecutionUnit
}

// NewStaticMachine returns a machine using router.
func NewStaticMachine(router api.AddressRouter, units ...api.ExecutionUnit) *StaticMachine {
	return &StaticMachine{router: router, units: units}
}

// Attach adds an execution unit.
func (m *StaticMachine) Attach(u api.ExecutionUnit) {
	m.mu.Lock()
	m.units = append(m.units, u)
	m.mu.Unlock()
}

// ExecutionUnits implements api.Machine.
func (m *StaticMachine) ExecutionUnits() []api.ExecutionUnit {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.units)
}

// Router implements api.Machine.
func (m *StaticMachine) Router() api.AddressRouter {
	return m.router
}
