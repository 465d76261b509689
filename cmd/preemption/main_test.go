package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yudhasubki/preemption/pkg/spin"
	"github.com/yudhasubki/preemption/pkg/stress"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestReadConfigFile(t *testing.T) {
	path := writeConfig(t, `
http:
  port: "8080"
logging:
  level: debug
  type: json
  stderr: true
spin:
  policy: exponential
  max_retries: 100
  initial_interval: 1us
  max_interval: 1ms
stress:
  workers: 4
  iterations: 500
  hold: 10us
sim:
  cores: 4
  fail_every: 3
`)

	cfg, err := ReadConfigFile(path)
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Http.Port)
	require.Equal(t, 5*time.Second, cfg.Http.Shutdown)
	require.Equal(t, time.Second, cfg.Http.Interval)
	require.Equal(t, 64, cfg.Http.MaxWorkers)
	require.Equal(t, 1000000, cfg.Http.MaxIterations)
	require.Equal(t, spin.Config{
		Policy:          "exponential",
		MaxRetries:      100,
		InitialInterval: time.Microsecond,
		MaxInterval:     time.Millisecond,
	}, cfg.Spin)
	require.Equal(t, stress.Config{Workers: 4, Iterations: 500, Hold: 10 * time.Microsecond}, cfg.Stress)
	require.Equal(t, SimConfig{Cores: 4, FailEvery: 3}, cfg.Sim)

	control, sim, err := cfg.NewControl()
	require.NoError(t, err)
	require.NotNil(t, control)
	require.Equal(t, 4, sim.NumCores())
}

func TestReadConfigFileDefaults(t *testing.T) {
	cfg, err := ReadConfigFile(writeConfig(t, "logging:\n  level: error\n"))
	require.NoError(t, err)
	require.Equal(t, 8, cfg.Stress.Workers)
	require.Equal(t, 10000, cfg.Stress.Iterations)

	control, sim, err := cfg.NewControl()
	require.NoError(t, err)
	require.NotNil(t, control)
	require.Nil(t, sim)
}

func TestReadConfigFileUnknownPolicy(t *testing.T) {
	cfg, err := ReadConfigFile(writeConfig(t, "spin:\n  policy: ticket\n"))
	require.NoError(t, err)

	_, _, err = cfg.NewControl()
	require.ErrorIs(t, err, spin.ErrUnknownPolicy)
}

func TestMainRun(t *testing.T) {
	m := &Main{}

	require.ErrorIs(t, m.Run(context.Background(), nil), flag.ErrHelp)
	require.Error(t, m.Run(context.Background(), []string{"unknown"}))
	require.ErrorIs(t, m.Run(context.Background(), []string{"stress"}), errorEmptyPath)

	path := writeConfig(t, `
logging:
  level: error
stress:
  workers: 4
  iterations: 1000
sim:
  cores: 4
`)
	require.NoError(t, m.Run(context.Background(), []string{"stress", "-config", path}))
}

func TestRouterStress(t *testing.T) {
	cfg, err := ReadConfigFile(writeConfig(t, "logging:\n  level: error\nsim:\n  cores: 2\n"))
	require.NoError(t, err)

	control, sim, err := cfg.NewControl()
	require.NoError(t, err)

	handler := router(control, &rounds{
		control:       control,
		sim:           sim,
		maxWorkers:    cfg.Http.MaxWorkers,
		maxIterations: 5000,
	})

	body, err := json.Marshal(stress.Config{Workers: 2, Iterations: 1000})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stress", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Data stress.Result `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	require.Equal(t, 2000, response.Data.Counter)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stress", bytes.NewReader([]byte(`{"workers":3,"iterations":1}`))))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stress", bytes.NewReader([]byte(`{"workers":2,"iterations":5001}`))))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), errorRequestTooLarge.Error())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stress", bytes.NewReader([]byte(`{"workers":65,"iterations":1}`))))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stress", bytes.NewReader([]byte(`{`))))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
