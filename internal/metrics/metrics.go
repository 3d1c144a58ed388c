// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var MessageEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "imageguard_message_evaluations_total",
	Help: "Number of evaluated messages, by verdict",
}, []string{"verdict"})

var EvaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "imageguard_evaluation_duration_sec",
	Help:    "Duration of message evaluation, including fetch and hashing",
	Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
})

var FingerprintCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "imageguard_fingerprint_cache_lookups_total",
	Help: "Number of fingerprint cache lookups, by result (hit, miss, error)",
}, []string{"result"})

var HashDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "imageguard_hash_duration_sec",
	Help:    "Duration of decoding and hashing one image",
	Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
})

var FetchFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "imageguard_fetch_failures_total",
	Help: "Number of candidate images that could not be fetched",
})

var UnscorableCandidates = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "imageguard_unscorable_candidates_total",
	Help: "Number of candidate images skipped during matching, by reason",
}, []string{"reason"})

var DispatchCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "imageguard_dispatch_count",
	Help: "Number of enforcement actions, by action and outcome",
}, []string{"action", "outcome"})

var RegistryOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "imageguard_registry_operations_total",
	Help: "Number of rule registry operations, by operation and outcome",
}, []string{"op", "outcome"})
