package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sanctuary"

var (
	occurrencesMaterialized = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "horizon",
		Name:      "occurrences_materialized_total",
		Help:      "Occurrences inserted by horizon maintenance, labeled by category.",
	}, []string{"category"})

	generationWarnings = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "horizon",
		Name:      "generation_warnings_total",
		Help:      "Series whose rule produced no occurrences within the horizon.",
	})

	sweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "horizon",
		Name:      "sweep_duration_seconds",
		Help:      "Time spent extending the horizon of every active series.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	lastSweepGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "horizon",
		Name:      "last_sweep_timestamp_seconds",
		Help:      "Unix timestamp of the most recent completed horizon sweep.",
	})

	guardDenials = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "guard",
		Name:      "denials_total",
		Help:      "Edits and deletes refused by the mutation guard.",
	}, []string{"action", "reason"})

	staleWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "guard",
		Name:      "stale_writes_total",
		Help:      "Writes rejected because the activity started between read and write.",
	})

	prayerRequestsArchived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "prayer_requests",
		Name:      "archived_total",
		Help:      "Prayer requests marked prayed and archived, labeled by visibility.",
	}, []string{"visibility"})

	attendanceRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "attendance",
		Name:      "joins_total",
		Help:      "First joins recorded for live activities.",
	})

	favoriteChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "favorites",
		Name:      "changes_total",
		Help:      "Series favorites added or removed by members.",
	}, []string{"op"})

	bufferedOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "buffer",
		Name:      "operations_total",
		Help:      "Operations written to the local buffer while storage was unavailable.",
	}, []string{"entity"})

	eventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Domain events handed to publishers, labeled by event name and outcome.",
	}, []string{"name", "outcome"})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, labeled by method and status code.",
	}, []string{"method", "code"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})
)

func init() {
	prometheus.MustRegister(
		occurrencesMaterialized,
		generationWarnings,
		sweepDuration,
		lastSweepGauge,
		guardDenials,
		staleWrites,
		prayerRequestsArchived,
		attendanceRecorded,
		favoriteChanges,
		bufferedOperations,
		eventsPublished,
		httpRequests,
		httpDuration,
	)
}

func RecordMaterialized(category string, n int) {
	if n <= 0 {
		return
	}
	occurrencesMaterialized.WithLabelValues(category).Add(float64(n))
}

func RecordGenerationWarning() {
	generationWarnings.Inc()
}

// RecordSweep observes a completed horizon sweep.
func RecordSweep(started time.Time, finished time.Time) {
	sweepDuration.Observe(finished.Sub(started).Seconds())
	lastSweepGauge.Set(float64(finished.Unix()))
}

func RecordGuardDenial(action, reason string) {
	guardDenials.WithLabelValues(action, reason).Inc()
}

func RecordStaleWrite() {
	staleWrites.Inc()
}

func RecordPrayerRequestArchived(visibility string) {
	prayerRequestsArchived.WithLabelValues(visibility).Inc()
}

func RecordAttendance() {
	attendanceRecorded.Inc()
}

func RecordFavorite(added bool) {
	op := "removed"
	if added {
		op = "added"
	}
	favoriteChanges.WithLabelValues(op).Inc()
}

func RecordBuffered(entity string) {
	bufferedOperations.WithLabelValues(entity).Inc()
}

func RecordEventPublished(name string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	eventsPublished.WithLabelValues(name, outcome).Inc()
}

func RecordHTTPRequest(method string, code int, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, statusLabel(code)).Inc()
	httpDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
