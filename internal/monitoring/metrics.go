package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for CRT Reconstruction
// =============================================================================

var (
	// EventsProcessed counts events handled by the pipeline.
	// Labels: status (ok, error)
	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crtreco",
		Name:      "events_processed_total",
		Help:      "Total events processed by the CRT reconstruction",
	}, []string{"status"})

	// ClustersProduced counts clusters by tagger.
	// Labels: tagger
	ClustersProduced = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crtreco",
		Name:      "clusters_total",
		Help:      "Total strip-hit clusters produced",
	}, []string{"tagger"})

	// TruthMatches counts truth matching queries.
	// Labels: kind (hit, cluster, input_cluster), matched (true, false)
	TruthMatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crtreco",
		Name:      "truth_matches_total",
		Help:      "Total truth matching queries",
	}, []string{"kind", "matched"})

	// InconsistentCompleteness counts matches whose completeness exceeds one.
	// Labels: kind
	InconsistentCompleteness = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crtreco",
		Name:      "inconsistent_completeness_total",
		Help:      "Truth matches reporting completeness above one",
	}, []string{"kind"})

	// EventDuration measures per-event processing time.
	EventDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "crtreco",
		Name:      "event_duration_seconds",
		Help:      "Per-event processing time in seconds",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})
)
