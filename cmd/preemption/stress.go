package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"

	"github.com/yudhasubki/preemption/pkg/stress"
)

type Stress struct{}

func (s *Stress) Run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("preemption-stress", flag.ContinueOnError)
	path := register(fs)
	fs.Usage = s.Usage

	err := fs.Parse(args)
	if err != nil {
		return err
	}

	if *path == "" {
		return errorEmptyPath
	}

	cfg, err := ReadConfigFile(*path)
	if err != nil {
		return err
	}

	control, sim, err := cfg.NewControl()
	if err != nil {
		return err
	}

	result, err := stress.Run(ctx, control, cfg.Stress, sim)
	if err != nil {
		slog.Error("stress round failed",
			"error", err,
			"counter", result.Counter,
			"expected", result.Expected,
		)
		return err
	}

	slog.Info("stress round passed",
		"workers", cfg.Stress.Workers,
		"iterations", cfg.Stress.Iterations,
		"counter", result.Counter,
		"elapsed", result.Elapsed,
	)

	return nil
}

func (s *Stress) Usage() {
	fmt.Printf(`
The stress command runs workers that each enter the critical section
repeatedly and checks the shared counter afterwards.

Usage:
	preemption stress [arguments]

Arguments:
	-config PATH
	    Specifies the configuration file.
`[1:],
	)
}
