// Package metrics exposes Prometheus instrumentation for the server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pixelforge_runs_total",
		Help: "Agent runs by terminal outcome.",
	}, []string{"outcome"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pixelforge_run_duration_seconds",
		Help:    "Wall-clock duration of agent runs.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 12),
	})

	stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pixelforge_steps_total",
		Help: "Tool invocation attempts by tool and status.",
	}, []string{"tool", "status"})

	creditsCharged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pixelforge_credits_charged_total",
		Help: "Credits committed to the ledger.",
	})
)

// ObserveRun records one finished run.
func ObserveRun(outcome string, seconds, credits float64) {
	runsTotal.WithLabelValues(outcome).Inc()
	runDuration.Observe(seconds)
	if credits > 0 {
		creditsCharged.Add(credits)
	}
}

// ObserveStep records one tool invocation attempt.
func ObserveStep(tool, status string) {
	stepsTotal.WithLabelValues(tool, status).Inc()
}
