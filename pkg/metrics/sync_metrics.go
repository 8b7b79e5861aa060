package metrics

import "github.com/prometheus/client_golang/prometheus"

// SyncRuns counts orchestrator runs per domain. Result is one of
// "completed", "failed" or "skipped" (lock/cooldown).
var SyncRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "sync_runs_total",
	Help: "How many sync runs were attempted, partitioned by domain and result",
}, []string{"domain", "result"})

var SyncUploads = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "sync_uploads_total",
	Help: "How many cached files were uploaded during sync runs",
}, []string{"domain"})

var SyncDeletes = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "sync_deletes_total",
	Help: "How many stale cached files were deleted during sync runs",
}, []string{"domain"})

var SyncFileFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "sync_file_failures_total",
	Help: "How many per-file fetch/upload failures occurred during sync runs",
}, []string{"domain"})

func init() {
	prometheus.MustRegister(SyncRuns, SyncUploads, SyncDeletes, SyncFileFailures)
}
