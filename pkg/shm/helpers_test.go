package shm

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/srediag/cosim-shm/api"
	internalshm "github.com/srediag/cosim-shm/internal/shm"
)

const testPath = "cosim-test-ram"

// openMemRegion opens a region of size bytes over a fresh in-memory backing
// object and returns the region, the platform and the backing storage.
func openMemRegion(t testing.TB, size uint64, configure func(*Config)) (*Region, *internalshm.MemoryPlatform, []byte) {
	t.Helper()
	p := internalshm.NewMemoryPlatform()
	cfg := DefaultConfig()
	cfg.Path = testPath
	cfg.Size = size
	cfg.Platform = p
	if configure != nil {
		configure(&cfg)
	}
	backing := p.Create(cfg.Path, int(uint64(cfg.Offset)+cfg.Size))
	r, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Dispose() })
	return r, p, backing
}

type invalidation struct {
	unit       string
	start, end uint64
}

// recorder collects invalidations from every recordingUnit that shares it.
type recorder struct {
	mu    sync.Mutex
	calls []invalidation
}

func (r *recorder) all() []invalidation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]invalidation, len(r.calls))
	copy(out, r.calls)
	return out
}

type recordingUnit struct {
	name string
	rec  *recorder
}

func (u *recordingUnit) Name() string { return u.name }

func (u *recordingUnit) InvalidateTranslationCache(start, end uint64) {
	u.rec.mu.Lock()
	u.rec.calls = append(u.rec.calls, invalidation{u.name, start, end})
	u.rec.mu.Unlock()
}

// plainUnit has no translation cache.
type plainUnit struct{ name string }

func (u plainUnit) Name() string { return u.name }

type fakeRouter struct {
	mu      sync.Mutex
	points  map[string][]uint64
	lookups int
	subs    []func()
}

func newFakeRouter(name string, bases ...uint64) *fakeRouter {
	return &fakeRouter{points: map[string][]uint64{name: bases}}
}

func (r *fakeRouter) RegistrationPoints(p api.Peripheral) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	return r.points[p.Name()]
}

func (r *fakeRouter) OnTopologyChange(fn func()) {
	r.subs = append(r.subs, fn)
}

func (r *fakeRouter) set(name string, bases ...uint64) {
	r.mu.Lock()
	r.points[name] = bases
	r.mu.Unlock()
	for _, fn := range r.subs {
		fn()
	}
}

func (r *fakeRouter) lookupCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookups
}

// plainRouter has no topology notifications.
type plainRouter struct{ inner *fakeRouter }

func (r plainRouter) RegistrationPoints(p api.Peripheral) []uint64 {
	return r.inner.RegistrationPoints(p)
}

type fakeMachine struct {
	router api.AddressRouter
	units  []api.ExecutionUnit
}

func (m *fakeMachine) ExecutionUnits() []api.ExecutionUnit { return m.units }
func (m *fakeMachine) Router() api.AddressRouter           { return m.router }

// faultyUnit panics on every invalidation.
type faultyUnit struct{ name string }

func (u faultyUnit) Name() string { return u.name }

func (u faultyUnit) InvalidateTranslationCache(start, end uint64) {
	panic("translation cache corrupted")
}
