package arch

import (
	"fmt"
	"runtime"
	"sync/atomic"
)

// Sim is a software machine with a fixed number of cores. Every core has its
// own interrupt mask; the exclusive monitor is shared and can be told to drop
// exclusivity on a schedule.
type Sim struct {
	cores     []*SimCore
	failEvery uint64
	stores    atomic.Uint64
	failures  atomic.Uint64
}

type SimOption func(*Sim)

// FailEvery makes every n-th exclusive store fail as if another core touched
// the word between the load and the store. Zero disables injection.
func FailEvery(n uint64) SimOption {
	return func(s *Sim) {
		s.failEvery = n
	}
}

func NewSim(cores int, opts ...SimOption) *Sim {
	if cores <= 0 {
		panic(fmt.Sprintf("arch: invalid core count %d", cores))
	}

	sim := &Sim{
		cores: make([]*SimCore, cores),
	}
	for _, opt := range opts {
		opt(sim)
	}

	for i := range sim.cores {
		sim.cores[i] = &SimCore{id: i, sim: sim}
	}

	return sim
}

func (s *Sim) NumCores() int {
	return len(s.cores)
}

func (s *Sim) Core(i int) *SimCore {
	return s.cores[i]
}

// CompareAndSwap implements Exclusive for the whole machine.
func (s *Sim) CompareAndSwap(word *uint32, old, new uint32) bool {
	if atomic.LoadUint32(word) != old {
		return false
	}

	n := s.stores.Add(1)
	if s.failEvery > 0 && n%s.failEvery == 0 {
		s.failures.Add(1)
		return false
	}

	return atomic.CompareAndSwapUint32(word, old, new)
}

// InjectedFailures returns how many exclusive stores were failed on purpose.
func (s *Sim) InjectedFailures() uint64 {
	return s.failures.Load()
}

// SimCore is one simulated core. A masked core cannot be preempted, so while
// one section holds it masked every other Mask on the core waits. Mask is not
// reentrant: masking a core the caller already masked never returns.
type SimCore struct {
	id      int
	sim     *Sim
	mask    atomic.Uint32
	masks   atomic.Uint64
	unmasks atomic.Uint64
}

var _ Backend = (*SimCore)(nil)

func (c *SimCore) ID() int {
	return c.id
}

func (c *SimCore) Mask() Mask {
	for !c.mask.CompareAndSwap(0, uint32(All)) {
		runtime.Gosched()
	}
	c.masks.Add(1)

	return 0
}

func (c *SimCore) Unmask(prev Mask) {
	c.unmasks.Add(1)
	c.mask.Store(uint32(prev))
}

func (c *SimCore) CompareAndSwap(word *uint32, old, new uint32) bool {
	return c.sim.CompareAndSwap(word, old, new)
}

// Masked reports whether IRQ and FIQ are both masked on the core.
func (c *SimCore) Masked() bool {
	return Mask(c.mask.Load()).Has(All)
}

// Counts returns how many times the core was masked and unmasked.
func (c *SimCore) Counts() (masks, unmasks uint64) {
	return c.masks.Load(), c.unmasks.Load()
}
