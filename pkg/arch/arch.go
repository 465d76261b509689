// Package arch abstracts the two hardware capabilities the preemption
// primitive needs: core-local interrupt masking and an exclusive-access
// compare-and-swap on a lock word.
package arch

import "sync/atomic"

// Mask is a set of interrupt classes masked on a core.
type Mask uint32

const (
	// IRQ masks ordinary interrupts.
	IRQ Mask = 1 << iota
	// FIQ masks fast interrupts.
	FIQ

	All = IRQ | FIQ
)

func (m Mask) Has(class Mask) bool {
	return m&class == class
}

// Interrupts masks and restores interrupt delivery on the calling core.
type Interrupts interface {
	// Mask masks IRQ and FIQ and returns the mask that was in effect before.
	Mask() Mask
	// Unmask restores a mask previously returned by Mask.
	Unmask(prev Mask)
}

// Exclusive performs an exclusive load/store pair on a lock word. It reports
// false when the word did not hold old or exclusivity was lost between the
// load and the store.
type Exclusive interface {
	CompareAndSwap(word *uint32, old, new uint32) bool
}

type Backend interface {
	Interrupts
	Exclusive
}

// Native runs on the host: the compare-and-swap is the processor's atomic
// instruction, and interrupt masking is unavailable from user space so it does
// nothing.
type Native struct{}

var _ Backend = Native{}

func (Native) Mask() Mask { return 0 }

func (Native) Unmask(Mask) {}

func (Native) CompareAndSwap(word *uint32, old, new uint32) bool {
	return atomic.CompareAndSwapUint32(word, old, new)
}
