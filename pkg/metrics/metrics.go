// Package metrics exposes the Prometheus counters and gauges the
// detection pipeline's components record against, and a small admin
// HTTP server that serves them alongside a liveness probe.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PoisonTotal counts messages ack-dropped as unrecoverable, per
	// source_kind and reason.
	PoisonTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poison_total",
		Help: "Messages routed to the dead-letter subject instead of being processed.",
	}, []string{"source_kind", "reason"})

	// JudgeTimeoutTotal counts judge requests that hit the hard
	// classification deadline and fell back to the default verdict.
	JudgeTimeoutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "judge_timeout_total",
		Help: "Judge classification requests that exceeded the hard deadline.",
	})

	// RegistryUnavailableTotal counts registry lookups that failed open
	// (treated as no-match) because the registry was unreachable.
	RegistryUnavailableTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "registry_unavailable_total",
		Help: "Registry lookups that failed open due to the registry being unreachable.",
	})

	// JudgeCacheHitsTotal / JudgeCacheMissesTotal count the judge
	// worker's content-addressed cache outcomes.
	JudgeCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "judge_cache_hits_total",
		Help: "Judge classification requests served from cache.",
	})
	JudgeCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "judge_cache_misses_total",
		Help: "Judge classification requests that missed the cache and invoked a provider.",
	})

	// IngestLag is the per-subject backlog gauge, holding whatever
	// SetIngestLag last recorded. The broker clients and the ingest
	// supervisor in this module do not set it.
	IngestLag = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ingest_lag",
		Help: "Backlog (unacked message count) last recorded per subject.",
	}, []string{"subject"})

	// QuarantineCircuitOpen is 1 while the poison-rate circuit breaker
	// for a source is open, 0 otherwise.
	QuarantineCircuitOpen = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quarantine_circuit_open",
		Help: "1 while the quarantine circuit breaker for a source_kind is open.",
	}, []string{"source_kind"})

	// DetectionsFinalizedTotal counts correlation groups that reached a
	// verdict, by verdict value.
	DetectionsFinalizedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "detections_finalized_total",
		Help: "Correlation groups finalized into a detection outcome, by verdict.",
	}, []string{"verdict"})

	// StoreWriteErrorsTotal counts failed idempotent writes to the
	// detection outcome store.
	StoreWriteErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "store_write_errors_total",
		Help: "Detection outcome writes that failed after retry.",
	})
)

// RecordPoison increments PoisonTotal for sourceKind/reason.
func RecordPoison(sourceKind, reason string) {
	PoisonTotal.WithLabelValues(sourceKind, reason).Inc()
}

// RecordJudgeTimeout increments JudgeTimeoutTotal.
func RecordJudgeTimeout() {
	JudgeTimeoutTotal.Inc()
}

// RecordRegistryUnavailable increments RegistryUnavailableTotal.
func RecordRegistryUnavailable() {
	RegistryUnavailableTotal.Inc()
}

// RecordCacheHit / RecordCacheMiss record judge cache outcomes.
func RecordCacheHit()  { JudgeCacheHitsTotal.Inc() }
func RecordCacheMiss() { JudgeCacheMissesTotal.Inc() }

// SetIngestLag records the observed backlog for subject.
func SetIngestLag(subject string, n float64) {
	IngestLag.WithLabelValues(subject).Set(n)
}

// SetQuarantineCircuit records whether sourceKind's circuit is open.
func SetQuarantineCircuit(sourceKind string, open bool) {
	v := 0.0
	if open {
		v = 1.0
	}
	QuarantineCircuitOpen.WithLabelValues(sourceKind).Set(v)
}

// RecordDetectionFinalized increments DetectionsFinalizedTotal for verdict.
func RecordDetectionFinalized(verdict string) {
	DetectionsFinalizedTotal.WithLabelValues(verdict).Inc()
}

// RecordStoreWriteError increments StoreWriteErrorsTotal.
func RecordStoreWriteError() {
	StoreWriteErrorsTotal.Inc()
}

// Timer measures elapsed wall time for a single operation.
type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
