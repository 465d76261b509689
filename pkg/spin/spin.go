// Package spin holds the retry policies used between failed lock attempts.
package spin

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var (
	ErrUnknownPolicy = errors.New("unknown spin policy")
)

// Policy builds the backoff state for one contended acquisition. A BackOff
// returning backoff.Stop ends the acquisition.
type Policy func() backoff.BackOff

// Yield retries forever, giving up the time slice between attempts.
func Yield() Policy {
	return func() backoff.BackOff {
		return &backoff.ZeroBackOff{}
	}
}

// Bounded stops p after retries failed attempts.
func Bounded(p Policy, retries uint64) Policy {
	return func() backoff.BackOff {
		return backoff.WithMaxRetries(p(), retries)
	}
}

// Exponential sleeps between attempts, doubling from initial up to max.
// A zero maxElapsed never gives up.
func Exponential(initial, max, maxElapsed time.Duration) Policy {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = initial
		b.MaxInterval = max
		b.MaxElapsedTime = maxElapsed
		b.Reset()

		return b
	}
}

// Wait blocks for the next interval of b. A zero interval yields the
// processor. It returns false once b is exhausted.
func Wait(b backoff.BackOff) bool {
	d := b.NextBackOff()
	switch {
	case d == backoff.Stop:
		return false
	case d <= 0:
		runtime.Gosched()
	default:
		time.Sleep(d)
	}

	return true
}

type Config struct {
	Policy          string        `yaml:"policy"`
	MaxRetries      uint64        `yaml:"max_retries"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	MaxElapsed      time.Duration `yaml:"max_elapsed"`
}

func (c Config) Build() (Policy, error) {
	var policy Policy

	switch strings.ToLower(c.Policy) {
	case "", "yield":
		policy = Yield()
	case "exponential":
		initial := c.InitialInterval
		if initial <= 0 {
			initial = time.Microsecond
		}

		max := c.MaxInterval
		if max < initial {
			max = initial * 64
		}

		policy = Exponential(initial, max, c.MaxElapsed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, c.Policy)
	}

	if c.MaxRetries > 0 {
		policy = Bounded(policy, c.MaxRetries)
	}

	return policy, nil
}
