package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Acquisitions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "preemption_guard_acquisitions_total",
		Help: "The total number of guards handed out by preemption controls",
	})

	SpinRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "preemption_spin_retries_total",
		Help: "The total number of failed exclusive lock attempts that were retried",
	})

	SpinLimitExceeded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "preemption_spin_limit_exceeded_total",
		Help: "The total number of acquisitions abandoned by a bounded spin policy or a cancelled context",
	})

	GuardMisuse = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "preemption_guard_misuse_total",
		Help: "The total number of rejected guard releases",
	}, []string{"reason"})

	Held = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "preemption_guards_held",
		Help: "The number of guards currently outstanding",
	})

	WaitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "preemption_wait_seconds",
		Help:    "Time spent between masking interrupts and acquiring the lock",
		Buckets: prometheus.ExponentialBuckets(1e-7, 4, 12),
	})

	HoldSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "preemption_hold_seconds",
		Help:    "Time a guard was held before release",
		Buckets: prometheus.ExponentialBuckets(1e-7, 4, 12),
	})
)

func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		Acquisitions,
		SpinRetries,
		SpinLimitExceeded,
		GuardMisuse,
		Held,
		WaitSeconds,
		HoldSeconds,
	}
}
