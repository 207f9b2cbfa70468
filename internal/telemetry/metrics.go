package telemetry

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "offstream"

var (
	RecordsEmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_emitted_total",
		Help:      "Records handed to the downstream pipeline.",
	})
	RecordsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_skipped_total",
		Help:      "Replayed records discarded because their offset was already consumed.",
	})
	OffsetCommits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "offset_commits_total",
		Help:      "Per-partition offset writes to the coordination store.",
	})
	CommitErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "offset_commit_errors_total",
		Help:      "Failed offset writes to the coordination store.",
	})
	CheckpointsCommitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkpoints_committed_total",
		Help:      "Checkpoint completions fully pushed to the coordination store.",
	})
	LastCommitted = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_committed_offset",
		Help:      "Last offset written to the coordination store per partition.",
	}, []string{"topic", "partition"})
)

func init() {
	prometheus.MustRegister(
		RecordsEmitted,
		RecordsSkipped,
		OffsetCommits,
		CommitErrors,
		CheckpointsCommitted,
		LastCommitted,
	)
}

func Expose(port int) {
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		_ = http.ListenAndServe(fmt.Sprintf(":%d", port), nil)
	}()
}
