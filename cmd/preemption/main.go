package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/yudhasubki/preemption"
	"github.com/yudhasubki/preemption/pkg/arch"
	"github.com/yudhasubki/preemption/pkg/spin"
	"github.com/yudhasubki/preemption/pkg/stress"
	"gopkg.in/yaml.v3"
)

var (
	errorEmptyPath       = errors.New("configuration path is empty")
	errorRequestTooLarge = errors.New("stress request exceeds configured limits")
	shutdown             = make(chan os.Signal, 1)
)

func main() {
	m := &Main{}

	err := m.Run(context.Background(), os.Args[1:])
	if err != nil {
		slog.Error("failed to run", "error", err)
		os.Exit(1)
	}
}

type Main struct{}

func (m *Main) Run(ctx context.Context, args []string) error {
	var cmd string
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "http":
		return (&Http{}).Run(ctx, args)
	case "stress":
		return (&Stress{}).Run(ctx, args)
	default:
		if cmd == "" || cmd == "help" {
			m.Usage()
			return flag.ErrHelp
		}

		return fmt.Errorf("unknown command : %v", cmd)
	}
}

func (m *Main) Usage() {
	fmt.Println(`
preemption exercises a preemption control: interrupt masking plus an exclusive spin lock

Usage:

	preemption <command> [arguments]

The commands are:

	http    	serve status and metrics while stress rounds run in the background
	stress  	run one stress round and verify no update was lost
`[1:])
}

type Config struct {
	Http    HttpConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
	Spin    spin.Config   `yaml:"spin"`
	Stress  stress.Config `yaml:"stress"`
	Sim     SimConfig     `yaml:"sim"`
}

func ReadConfigFile(filename string) (_ Config, err error) {
	var config Config
	b, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}

	err = yaml.Unmarshal(b, &config)
	if err != nil {
		return config, err
	}

	if config.Http.Shutdown.Seconds() == 0 {
		config.Http.Shutdown = 5 * time.Second
	}

	if config.Http.Interval == 0 {
		config.Http.Interval = time.Second
	}

	if config.Http.MaxWorkers == 0 {
		config.Http.MaxWorkers = 64
	}

	if config.Http.MaxIterations == 0 {
		config.Http.MaxIterations = 1000000
	}

	if config.Stress.Workers == 0 {
		config.Stress.Workers = 8
	}

	if config.Stress.Iterations == 0 {
		config.Stress.Iterations = 10000
	}

	logOutput := os.Stdout
	if config.Logging.Stderr {
		logOutput = os.Stderr
	}

	logOpts := slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	switch strings.ToUpper(config.Logging.Level) {
	case "DEBUG":
		logOpts.Level = slog.LevelDebug
	case "WARN", "WARNING":
		logOpts.Level = slog.LevelWarn
	case "ERROR":
		logOpts.Level = slog.LevelError
	}

	var logHandler slog.Handler
	switch config.Logging.Type {
	case "json":
		logHandler = slog.NewJSONHandler(logOutput, &logOpts)
	case "text", "":
		logHandler = slog.NewTextHandler(logOutput, &logOpts)
	default:
		return config, fmt.Errorf("unknown logging type : %v", config.Logging.Type)
	}

	slog.SetDefault(slog.New(logHandler))

	return config, nil
}

// NewControl builds the control described by the config. With sim.cores set
// the control runs on a simulated machine, which is returned as well.
func (c Config) NewControl() (*preemption.Control, *arch.Sim, error) {
	policy, err := c.Spin.Build()
	if err != nil {
		return nil, nil, err
	}

	opts := []preemption.Option{
		preemption.WithSpinPolicy(policy),
		preemption.WithLogger(slog.Default()),
	}

	var sim *arch.Sim
	if c.Sim.Cores > 0 {
		sim = arch.NewSim(c.Sim.Cores, arch.FailEvery(c.Sim.FailEvery))
		opts = append(opts, preemption.WithBackend(sim.Core(0)))
	}

	return preemption.New(opts...), sim, nil
}

type HttpConfig struct {
	Port     string        `yaml:"port"`
	Shutdown time.Duration `yaml:"shutdown"`
	Interval time.Duration `yaml:"interval"`

	// MaxWorkers and MaxIterations bound a POST /stress request.
	MaxWorkers    int `yaml:"max_workers"`
	MaxIterations int `yaml:"max_iterations"`
}

func register(fs *flag.FlagSet) *string {
	return fs.String("config", "", "config path")
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Type   string `yaml:"type"`
	Stderr bool   `yaml:"stderr"`
}

type SimConfig struct {
	Cores     int    `yaml:"cores"`
	FailEvery uint64 `yaml:"fail_every"`
}
