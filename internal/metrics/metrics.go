// Package metrics exposes Prometheus metrics for the runner service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "geometry_runner",
		Name:      "runs_submitted_total",
		Help:      "Completed runs appended to the durable score log.",
	})

	submitFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "geometry_runner",
		Name:      "submit_failures_total",
		Help:      "Run submissions that failed at the storage boundary.",
	})

	rankingRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "geometry_runner",
		Name:      "ranking_rebuilds_total",
		Help:      "Full ranking recomputations over the score log.",
	})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "geometry_runner",
		Name:      "active_sessions",
		Help:      "Game sessions currently ticking.",
	})

	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "geometry_runner",
		Name:      "tick_duration_seconds",
		Help:      "Wall time spent inside one game tick.",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
	})
)

func RecordRunSubmitted() { runsSubmitted.Inc() }

func RecordSubmitFailure() { submitFailures.Inc() }

func RecordRankingRebuild() { rankingRebuilds.Inc() }

func SessionStarted() { activeSessions.Inc() }

func SessionEnded() { activeSessions.Dec() }

func ObserveTickDuration(d time.Duration) {
	tickDuration.Observe(d.Seconds())
}
