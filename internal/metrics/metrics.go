package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	sweepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pinsweeper",
			Name:      "sweeps_total",
			Help:      "Total sweeps by result (success, error, skipped)",
		},
		[]string{"result"},
	)

	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pinsweeper",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of completed sweeps",
			Buckets:   prometheus.DefBuckets,
		},
	)

	pinsDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pinsweeper",
			Name:      "pins_deleted_total",
			Help:      "Total pin records deleted",
		},
	)

	imageDeletes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pinsweeper",
			Name:      "image_deletes_total",
			Help:      "Image blob deletions by result (deleted, missing, failed, skipped)",
		},
		[]string{"result"},
	)

	auditWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pinsweeper",
			Name:      "audit_writes_total",
			Help:      "Audit log writes by sink (remote, local) and result",
		},
		[]string{"sink", "result"},
	)

	lastSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pinsweeper",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last sweep that finished without error",
		},
	)

	logReads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pinsweeper",
			Name:      "log_reads_total",
			Help:      "Log viewer reads by source (remote, local, empty, error)",
		},
		[]string{"source"},
	)

	once sync.Once
)

// Init registers collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(sweepsTotal, sweepDuration, pinsDeleted, imageDeletes, auditWrites, lastSuccess, logReads)
	})
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveSweep(result string, dur time.Duration) {
	sweepsTotal.WithLabelValues(result).Inc()
	if result == "success" {
		sweepDuration.Observe(dur.Seconds())
		lastSuccess.SetToCurrentTime()
	}
}

func AddPinsDeleted(n int)              { pinsDeleted.Add(float64(n)) }
func IncImageDelete(result string)      { imageDeletes.WithLabelValues(result).Inc() }
func IncAuditWrite(sink, result string) { auditWrites.WithLabelValues(sink, result).Inc() }
func IncLogRead(source string)          { logReads.WithLabelValues(source).Inc() }
