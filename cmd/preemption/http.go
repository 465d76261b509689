package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lesismal/nbio/nbhttp"
	"github.com/yudhasubki/preemption"
	"github.com/yudhasubki/preemption/pkg/arch"
	httpresponse "github.com/yudhasubki/preemption/pkg/http"
	"github.com/yudhasubki/preemption/pkg/stress"
)

type Http struct{}

func (h *Http) Run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("preemption-http", flag.ContinueOnError)
	path := register(fs)
	fs.Usage = h.Usage

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

	ctx, cancel := context.WithCancel(ctx)

	stressRounds := &rounds{
		control:       control,
		sim:           sim,
		maxWorkers:    cfg.Http.MaxWorkers,
		maxIterations: cfg.Http.MaxIterations,
	}

	engine := nbhttp.NewEngine(nbhttp.Config{
		Network: "tcp",
		Addrs:   []string{":" + cfg.Http.Port},
		Handler: router(control, stressRounds),
		IOMod:   nbhttp.IOModNonBlocking,
	})

	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	err = engine.Start()
	if err != nil {
		cancel()
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		stressRounds.background(ctx, cfg.Stress, cfg.Http.Interval)
	}()

	<-shutdown

	cancel()
	select {
	case <-done:
	case <-time.After(cfg.Http.Shutdown):
		slog.Warn("stress rounds did not stop before shutdown timeout")
	}
	engine.Stop()

	return nil
}

// rounds serializes stress rounds: a simulated core stands in for one
// hardware thread, so two rounds must never drive the same cores at once.
type rounds struct {
	mtx     sync.Mutex
	control *preemption.Control
	sim     *arch.Sim

	maxWorkers    int
	maxIterations int
}

func (r *rounds) run(ctx context.Context, cfg stress.Config) (stress.Result, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	return stress.Run(ctx, r.control, cfg, r.sim)
}

// background runs stress rounds, pausing interval between them, until ctx is
// cancelled.
func (r *rounds) background(ctx context.Context, cfg stress.Config, interval time.Duration) {
	for {
		result, err := r.run(ctx, cfg)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			slog.Error("background stress round failed",
				"error", err,
				"counter", result.Counter,
				"expected", result.Expected,
			)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

func router(control *preemption.Control, rounds *rounds) http.Handler {
	mux := chi.NewRouter()
	mux.Post("/stress", rounds.Stress)
	mux.Mount("/", (&preemption.Http{
		Control: control,
	}).Router())

	return mux
}

func (r *rounds) Stress(w http.ResponseWriter, req *http.Request) {
	var request stress.Config

	err := json.NewDecoder(req.Body).Decode(&request)
	if err != nil {
		slog.Error("[Stress] error decode request", "error", err)
		httpresponse.Write(w, http.StatusBadRequest, &httpresponse.Response{
			Error:   err.Error(),
			Message: httpresponse.MessageFailure,
		})
		return
	}

	if request.Workers > r.maxWorkers || request.Iterations > r.maxIterations {
		err = fmt.Errorf("%w: workers %d (max %d), iterations %d (max %d)", errorRequestTooLarge,
			request.Workers, r.maxWorkers, request.Iterations, r.maxIterations)
		httpresponse.Write(w, http.StatusBadRequest, &httpresponse.Response{
			Error:   err.Error(),
			Message: httpresponse.MessageFailure,
		})
		return
	}

	result, err := r.run(req.Context(), request)
	if err != nil {
		httpresponse.Write(w, http.StatusInternalServerError, &httpresponse.Response{
			Error:   err.Error(),
			Message: httpresponse.MessageFailure,
			Data:    result,
		})
		return
	}

	httpresponse.Write(w, http.StatusOK, &httpresponse.Response{
		Message: httpresponse.MessageSuccess,
		Data:    result,
	})
}

func (h *Http) Usage() {
	fmt.Printf(`
The HTTP command serves /status, /metrics and POST /stress while stress
rounds keep the control busy in the background.

Usage:
	preemption http [arguments]

Arguments:
	-config PATH
	    Specifies the configuration file.
`[1:],
	)
}
