package preemption

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/yudhasubki/preemption/pkg/arch"
	"github.com/yudhasubki/preemption/pkg/metric"
)

// noCopy lets go vet flag guards passed by value.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Guard is the proof that its control's lock is held with interrupts masked
// on one core. Release it exactly once.
type Guard struct {
	_ noCopy

	id       uuid.UUID
	control  *Control
	cpu      arch.Interrupts
	saved    arch.Mask
	acquired time.Time
	released atomic.Bool
}

func (g *Guard) ID() uuid.UUID {
	return g.id
}

func (g *Guard) Control() *Control {
	return g.control
}

func (g *Guard) HeldFor() time.Duration {
	return time.Since(g.acquired)
}

// Release unlocks and then restores the interrupt mask saved when the guard
// was created. Any later call returns ErrGuardReleased and changes nothing.
// A nil or zero Guard returns ErrGuardMismatch.
func (g *Guard) Release() error {
	if g == nil || g.control == nil {
		metric.GuardMisuse.WithLabelValues("mismatch").Inc()
		slog.Error("[Release] guard not issued by a control", LogPrefixErr, ErrGuardMismatch)
		return ErrGuardMismatch
	}

	if !g.released.CompareAndSwap(false, true) {
		metric.GuardMisuse.WithLabelValues("double_release").Inc()
		g.control.logger.Error("[Release] guard released twice",
			LogPrefixErr, ErrGuardReleased,
			LogPrefixGuard, g.id.String(),
		)
		return ErrGuardReleased
	}

	held := time.Since(g.acquired)
	g.control.holder.CompareAndSwap(g, nil)
	g.control.lock.Unlock()
	g.cpu.Unmask(g.saved)

	metric.Held.Dec()
	metric.HoldSeconds.Observe(held.Seconds())

	return nil
}
