package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remindr_http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remindr_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remindr_run_duration_seconds",
			Help:    "Duration of reminder, queue and outbox runs",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"job"},
	)

	settingsEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remindr_settings_evaluated_total",
			Help: "Reminder settings evaluated by outcome",
		},
		[]string{"outcome"},
	)

	queueEntriesScheduled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "remindr_queue_entries_scheduled_total",
			Help: "Queue entries inserted by the preference scheduler",
		},
	)

	queueEntriesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remindr_queue_entries_processed_total",
			Help: "Due queue entries processed by result",
		},
		[]string{"result"},
	)

	deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remindr_deliveries_total",
			Help: "Channel delivery attempts by channel and status",
		},
		[]string{"channel", "status"},
	)

	outboxProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remindr_outbox_processed_total",
			Help: "Outbox rows processed by kind and status",
		},
		[]string{"kind", "status"},
	)

	dedupHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "remindr_dedup_hits_total",
			Help: "Sends suppressed by the Redis send-dedup guard",
		},
	)

	rateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remindr_rate_limit_rejections_total",
			Help: "Requests rejected by rate limiter",
		},
		[]string{"key"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "remindr_circuit_breaker_state",
			Help: "Circuit breaker state per provider (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	sqsMessagesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "remindr_sqs_messages_in_flight",
			Help: "Current tick messages being processed from SQS",
		},
	)

	dbConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "remindr_db_connections_active",
			Help: "Active database connections",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRun records how long one job run took
func RecordRun(job string, duration time.Duration) {
	runDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// RecordSettingEvaluated records one setting evaluation ("sent", "deferred", "skipped", "error")
func RecordSettingEvaluated(outcome string) {
	settingsEvaluated.WithLabelValues(outcome).Inc()
}

// RecordQueueEntryScheduled records one inserted queue entry
func RecordQueueEntryScheduled() {
	queueEntriesScheduled.Inc()
}

// RecordQueueEntryProcessed records a processed due entry ("sent", "retained", "completed")
func RecordQueueEntryProcessed(result string) {
	queueEntriesProcessed.WithLabelValues(result).Inc()
}

// RecordDelivery records one channel delivery attempt
func RecordDelivery(channel, status string) {
	deliveries.WithLabelValues(channel, status).Inc()
}

// RecordOutboxProcessed records one outbox row result
func RecordOutboxProcessed(kind, status string) {
	outboxProcessed.WithLabelValues(kind, status).Inc()
}

// RecordDedupHit records a send suppressed by the dedup guard
func RecordDedupHit() {
	dedupHits.Inc()
}

// RecordRateLimitRejection records a rate limit rejection
func RecordRateLimitRejection(key string) {
	rateLimitRejections.WithLabelValues(key).Inc()
}

// SetBreakerState records a breaker transition
func SetBreakerState(name string, state int) {
	breakerState.WithLabelValues(name).Set(float64(state))
}

// SetSQSMessagesInFlight sets the current in-flight message count
func SetSQSMessagesInFlight(count int) {
	sqsMessagesInFlight.Set(float64(count))
}

// SetDBConnections sets active database connection count
func SetDBConnections(count int) {
	dbConnectionsActive.Set(float64(count))
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns HTTP middleware that records request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		RecordRequest(r.Method, r.URL.Path, wrapped.status, time.Since(start))
	})
}
