package stress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yudhasubki/preemption"
	"github.com/yudhasubki/preemption/pkg/arch"
	"github.com/yudhasubki/preemption/pkg/spin"
)

func TestRunEightByTenThousand(t *testing.T) {
	control := preemption.New()

	result, err := Run(context.Background(), control, Config{Workers: 8, Iterations: 10000}, nil)
	require.NoError(t, err)
	require.Equal(t, 80000, result.Counter)
	require.EqualValues(t, 1, result.MaxConcurrent)
	require.False(t, control.Locked())
}

func TestRunSimulatedCores(t *testing.T) {
	sim := arch.NewSim(8, arch.FailEvery(5))
	control := preemption.New(preemption.WithExclusive(sim))

	result, err := Run(context.Background(), control, Config{Workers: 8, Iterations: 2000}, sim)
	require.NoError(t, err)
	require.Equal(t, 16000, result.Counter)
	require.NotZero(t, sim.InjectedFailures())

	for i := 0; i < sim.NumCores(); i++ {
		core := sim.Core(i)
		require.False(t, core.Masked())

		masks, unmasks := core.Counts()
		require.Equal(t, masks, unmasks)
	}
}

func TestRunCancelled(t *testing.T) {
	control := preemption.New(preemption.WithSpinPolicy(spin.Exponential(time.Millisecond, time.Millisecond, 0)))
	guard := control.Disable()
	defer guard.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := Run(ctx, control, Config{Workers: 2, Iterations: 1}, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunTooFewCores(t *testing.T) {
	sim := arch.NewSim(2)

	_, err := Run(context.Background(), preemption.New(preemption.WithExclusive(sim)), Config{Workers: 3, Iterations: 1}, sim)
	require.ErrorIs(t, err, ErrTooFewCores)
}

func TestRunInvalidShape(t *testing.T) {
	_, err := Run(context.Background(), preemption.New(), Config{Workers: 0, Iterations: 1}, nil)
	require.ErrorIs(t, err, ErrInvalidShape)
}
