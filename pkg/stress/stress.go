// Package stress drives a preemption control from many goroutines and checks
// that no increment made inside a critical section was lost.
package stress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/yudhasubki/preemption"
	"github.com/yudhasubki/preemption/pkg/arch"
	"golang.org/x/sync/errgroup"
)

var (
	ErrLostUpdate   = errors.New("lost update")
	ErrOverlap      = errors.New("critical sections overlapped")
	ErrInvalidShape = errors.New("workers and iterations must be positive")
	ErrTooFewCores  = errors.New("more workers than simulated cores")
)

type Config struct {
	Workers    int           `yaml:"workers" json:"workers"`
	Iterations int           `yaml:"iterations" json:"iterations"`
	Hold       time.Duration `yaml:"hold" json:"hold"`
}

type Result struct {
	Counter       int           `json:"counter"`
	Expected      int           `json:"expected"`
	MaxConcurrent int32         `json:"max_concurrent"`
	Elapsed       time.Duration `json:"elapsed"`
}

// Run starts cfg.Workers goroutines, each entering the critical section
// cfg.Iterations times. When sim is not nil worker i runs on simulated core i,
// otherwise on the control's default core.
func Run(ctx context.Context, control *preemption.Control, cfg Config, sim *arch.Sim) (Result, error) {
	if cfg.Workers <= 0 || cfg.Iterations <= 0 {
		return Result{}, ErrInvalidShape
	}

	if sim != nil && sim.NumCores() < cfg.Workers {
		return Result{}, fmt.Errorf("%w: %d workers, %d cores", ErrTooFewCores, cfg.Workers, sim.NumCores())
	}

	var (
		counter int
		inside  atomic.Int32
		maxSeen atomic.Int32
		start   = time.Now()
	)

	group, ctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Workers; w++ {
		var cpu arch.Interrupts
		if sim != nil {
			cpu = sim.Core(w)
		}

		group.Go(func() error {
			for i := 0; i < cfg.Iterations; i++ {
				guard, err := control.DisableContext(ctx, cpu)
				if err != nil {
					return err
				}

				n := inside.Add(1)
				for {
					seen := maxSeen.Load()
					if n <= seen || maxSeen.CompareAndSwap(seen, n) {
						break
					}
				}

				counter++
				if cfg.Hold > 0 {
					time.Sleep(cfg.Hold)
				}

				inside.Add(-1)
				if err := guard.Release(); err != nil {
					return err
				}
			}
			return nil
		})
	}

	err := group.Wait()
	result := Result{
		Counter:       counter,
		Expected:      cfg.Workers * cfg.Iterations,
		MaxConcurrent: maxSeen.Load(),
		Elapsed:       time.Since(start),
	}
	if err != nil {
		return result, err
	}

	if result.MaxConcurrent > 1 {
		return result, fmt.Errorf("%w: %d holders at once", ErrOverlap, result.MaxConcurrent)
	}

	if result.Counter != result.Expected {
		return result, fmt.Errorf("%w: counter %d, expected %d", ErrLostUpdate, result.Counter, result.Expected)
	}

	slog.Debug("stress round finished",
		"workers", cfg.Workers,
		"iterations", cfg.Iterations,
		"elapsed", result.Elapsed,
	)

	return result, nil
}
