package shm

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"

	"github.com/srediag/cosim-shm/api"
)

// Broadcaster propagates writes into the translation caches of every
// execution unit attached to the owning machine.
//
// The registration set is computed once from the machine's router and reused.
// It is dropped when the router reports a topology change (if it implements
// api.TopologyNotifier) or when Refresh is called; it is not otherwise
// revalidated.
type Broadcaster struct {
	machine api.Machine
	owner   api.Peripheral
	metrics *metrics
	pool    *ants.Pool

	registrations atomic.Pointer[[]uint64]
}

func newBroadcaster(machine api.Machine, owner api.Peripheral, m *metrics, pool *ants.Pool) *Broadcaster {
	b := &Broadcaster{machine: machine, owner: owner, metrics: m, pool: pool}
	if machine == nil {
		return b
	}
	if router := machine.Router(); router != nil {
		if tn, ok := router.(api.TopologyNotifier); ok {
			tn.OnTopologyChange(b.Refresh)
		}
	}
	return b
}

// Registrations returns the cached registration set, computing it on first use.
func (b *Broadcaster) Registrations() []uint64 {
	if regs := b.registrations.Load(); regs != nil {
		return *regs
	}
	var regs []uint64
	if b.machine != nil {
		if router := b.machine.Router(); router != nil {
			regs = slices.Clone(router.RegistrationPoints(b.owner))
			slices.Sort(regs)
			regs = slices.Compact(regs)
		}
	}
	if regs == nil {
		regs = []uint64{}
	}
	b.registrations.Store(&regs)
	internalLogger().debugf("region %s: registration points %#x", b.owner.Name(), regs)
	return regs
}

// Refresh drops the cached registration set; the next write recomputes it.
func (b *Broadcaster) Refresh() {
	if b.registrations.Swap(nil) != nil {
		internalLogger().infof("region %s: registration cache dropped", b.owner.Name())
	}
}

// NotifyWrite invalidates [base+offset, base+offset+length) for every
// registration base on every attached execution unit that supports
// translation-cache invalidation. Units without the capability are skipped.
// It returns the number of invalidation calls issued. A panic raised by a
// unit propagates to the caller whether or not a fan-out pool is in use.
func (b *Broadcaster) NotifyWrite(offset, length uint64) int {
	if b.machine == nil || length == 0 {
		return 0
	}
	regs := b.Registrations()
	units := b.machine.ExecutionUnits()

	targets := make([]api.TranslationCacheInvalidator, 0, len(units))
	for _, u := range units {
		if inv, ok := u.(api.TranslationCacheInvalidator); ok {
			targets = append(targets, inv)
		}
	}
	skipped := len(units) - len(targets)

	if len(regs) == 0 || len(targets) == 0 {
		b.metrics.invalidated(0, skipped)
		return 0
	}

	invalidate := func(inv api.TranslationCacheInvalidator) {
		for _, base := range regs {
			start := base + offset
			inv.InvalidateTranslationCache(start, start+length)
		}
	}

	if b.pool == nil || len(targets) == 1 {
		for _, inv := range targets {
			invalidate(inv)
		}
	} else {
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			recovered any
		)
		for _, inv := range targets {
			inv := inv
			wg.Add(1)
			if err := b.pool.Submit(func() {
				defer wg.Done()
				defer func() {
					if p := recover(); p != nil {
						mu.Lock()
						if recovered == nil {
							recovered = p
						}
						mu.Unlock()
					}
				}()
				invalidate(inv)
			}); err != nil {
				// Pool closed or overloaded; stay synchronous.
				wg.Done()
				invalidate(inv)
			}
		}
		wg.Wait()
		// A panicking unit reaches the writer on the pooled path too, once
		// every other unit has been invalidated.
		if recovered != nil {
			panic(recovered)
		}
	}

	calls := len(regs) * len(targets)
	b.metrics.invalidated(calls, skipped)
	return calls
}
