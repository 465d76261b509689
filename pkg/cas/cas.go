// Package cas implements the exclusive spin lock underneath preemption
// control. The lock word is heap allocated so its address never moves while
// other goroutines spin on it.
package cas

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/cenkalti/backoff/v4"
	"github.com/yudhasubki/preemption/pkg/arch"
	"github.com/yudhasubki/preemption/pkg/metric"
	"github.com/yudhasubki/preemption/pkg/spin"
)

var (
	ErrSpinLimit = errors.New("spin limit exceeded")
)

const (
	free = uint32(0)
	held = uint32(1)
)

type SpinLock struct {
	state     *uint32
	exclusive arch.Exclusive
	policy    spin.Policy
}

type Option func(*SpinLock)

func WithExclusive(exclusive arch.Exclusive) Option {
	return func(l *SpinLock) {
		l.exclusive = exclusive
	}
}

func WithPolicy(policy spin.Policy) Option {
	return func(l *SpinLock) {
		l.policy = policy
	}
}

func New(opts ...Option) *SpinLock {
	var poke *uint32
	poke = new(uint32)
	*poke = free

	lock := &SpinLock{
		state:     poke,
		exclusive: arch.Native{},
		policy:    spin.Yield(),
	}
	for _, opt := range opts {
		opt(lock)
	}

	return lock
}

// Lock blocks until the lock is held by the caller. It panics with
// ErrSpinLimit if the configured policy gives up; bounded policies should go
// through LockContext instead.
func (l *SpinLock) Lock() {
	err := l.LockContext(context.Background())
	if err != nil {
		panic(err)
	}
}

// LockContext spins until the lock is held, ctx is done or the spin policy is
// exhausted.
func (l *SpinLock) LockContext(ctx context.Context) error {
	if l.TryLock() {
		return nil
	}

	b := backoff.WithContext(l.policy(), ctx)
	for {
		if !spin.Wait(b) {
			metric.SpinLimitExceeded.Inc()
			if err := ctx.Err(); err != nil {
				return err
			}
			return ErrSpinLimit
		}
		metric.SpinRetries.Inc()

		if l.TryLock() {
			return nil
		}
	}
}

// TryLock makes a single exclusive attempt: load the word, give up if it is
// held, otherwise store 1 unless exclusivity was lost in between.
func (l *SpinLock) TryLock() bool {
	if atomic.LoadUint32(l.state) != free {
		return false
	}

	return l.exclusive.CompareAndSwap(l.state, free, held)
}

// Unlock releases the lock with a plain atomic store. It does not check that
// the lock is held.
func (l *SpinLock) Unlock() {
	atomic.StoreUint32(l.state, free)
}

func (l *SpinLock) Locked() bool {
	return atomic.LoadUint32(l.state) == held
}
