// Package preemption couples core-local interrupt masking with an exclusive
// spin lock. Disabling preemption masks interrupts on the calling core, then
// waits for the lock; the returned Guard undoes both when released.
//
//	guard := control.Disable()
//	defer guard.Release()
package preemption

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/yudhasubki/preemption/pkg/arch"
	"github.com/yudhasubki/preemption/pkg/cas"
	"github.com/yudhasubki/preemption/pkg/metric"
	"github.com/yudhasubki/preemption/pkg/spin"
)

var (
	ErrSpinLimit     = cas.ErrSpinLimit
	ErrGuardReleased = errors.New("guard already released")
	ErrGuardMismatch = errors.New("guard does not belong to this control")
)

const (
	LogPrefixErr     = "error"
	LogPrefixControl = "control"
	LogPrefixGuard   = "guard"
)

func init() {
	for _, collector := range metric.Collectors() {
		prometheus.Register(collector)
	}
}

type Control struct {
	id     uuid.UUID
	lock   *cas.SpinLock
	irq    arch.Interrupts
	logger *slog.Logger
	holder atomic.Pointer[Guard]
}

type Option func(*options)

type options struct {
	interrupts arch.Interrupts
	exclusive  arch.Exclusive
	policy     spin.Policy
	logger     *slog.Logger
}

// WithBackend uses backend both for masking and for the exclusive store.
func WithBackend(backend arch.Backend) Option {
	return func(o *options) {
		o.interrupts = backend
		o.exclusive = backend
	}
}

// WithInterrupts sets the interrupt controller used by Disable and
// DisableContext when no core is given.
func WithInterrupts(interrupts arch.Interrupts) Option {
	return func(o *options) {
		o.interrupts = interrupts
	}
}

func WithExclusive(exclusive arch.Exclusive) Option {
	return func(o *options) {
		o.exclusive = exclusive
	}
}

func WithSpinPolicy(policy spin.Policy) Option {
	return func(o *options) {
		o.policy = policy
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func New(opts ...Option) *Control {
	o := options{
		interrupts: arch.Native{},
		exclusive:  arch.Native{},
		policy:     spin.Yield(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	id := uuid.New()

	return &Control{
		id:     id,
		lock:   cas.New(cas.WithExclusive(o.exclusive), cas.WithPolicy(o.policy)),
		irq:    o.interrupts,
		logger: o.logger.With(LogPrefixControl, id.String()),
	}
}

func (c *Control) ID() uuid.UUID {
	return c.id
}

// Disable masks interrupts on the default core and blocks until the lock is
// held.
func (c *Control) Disable() *Guard {
	return c.DisableOn(c.irq)
}

// DisableOn masks interrupts through cpu and blocks until the lock is held.
// It panics with ErrSpinLimit when a bounded spin policy gives up; interrupts
// are restored first.
func (c *Control) DisableOn(cpu arch.Interrupts) *Guard {
	guard, err := c.DisableContext(context.Background(), cpu)
	if err != nil {
		panic(err)
	}

	return guard
}

// DisableContext is DisableOn with cancellation. A nil cpu means the default
// core. On error the interrupt mask is already restored.
func (c *Control) DisableContext(ctx context.Context, cpu arch.Interrupts) (*Guard, error) {
	if cpu == nil {
		cpu = c.irq
	}

	start := time.Now()
	saved := cpu.Mask()

	err := c.lock.LockContext(ctx)
	if err != nil {
		cpu.Unmask(saved)
		c.logger.Warn("[DisableContext] abandoned lock acquisition",
			LogPrefixErr, err,
			"waited", time.Since(start),
		)
		return nil, err
	}

	return c.entered(cpu, saved, start), nil
}

// TryDisableOn makes a single attempt at the lock. The mask is restored when
// the lock is busy.
func (c *Control) TryDisableOn(cpu arch.Interrupts) (*Guard, bool) {
	if cpu == nil {
		cpu = c.irq
	}

	start := time.Now()
	saved := cpu.Mask()

	if !c.lock.TryLock() {
		cpu.Unmask(saved)
		return nil, false
	}

	return c.entered(cpu, saved, start), true
}

func (c *Control) entered(cpu arch.Interrupts, saved arch.Mask, start time.Time) *Guard {
	now := time.Now()
	guard := &Guard{
		id:       uuid.New(),
		control:  c,
		cpu:      cpu,
		saved:    saved,
		acquired: now,
	}
	c.holder.Store(guard)

	metric.Acquisitions.Inc()
	metric.Held.Inc()
	metric.WaitSeconds.Observe(now.Sub(start).Seconds())

	return guard
}

// Enable releases a guard obtained from this control. The guard's own
// Release does the same; Enable only adds the ownership check.
func (c *Control) Enable(guard *Guard) error {
	if guard == nil || guard.control != c {
		metric.GuardMisuse.WithLabelValues("mismatch").Inc()
		c.logger.Error("[Enable] rejected guard", LogPrefixErr, ErrGuardMismatch)
		return ErrGuardMismatch
	}

	return guard.Release()
}

// Locked reports whether some guard currently holds the lock.
func (c *Control) Locked() bool {
	return c.lock.Locked()
}
