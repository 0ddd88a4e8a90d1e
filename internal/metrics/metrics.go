package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Database metrics
var (
	// DBQueriesTotal tracks the total number of database queries
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_queries_total",
			Help: "Total number of database queries executed",
		},
		[]string{"query_type", "table", "status"},
	)

	// DBQueryDuration tracks the duration of database queries
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query_type", "table"},
	)

	// DBConnectionsOpen tracks the number of open database connections
	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_open",
			Help: "Number of established connections both in use and idle",
		},
	)

	// DBConnectionsInUse tracks the number of connections currently in use
	DBConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_in_use",
			Help: "Number of connections currently in use",
		},
	)

	// DBConnectionsIdle tracks the number of idle connections
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle connections",
		},
	)

	// AppInfo provides static information about the application
	AppInfo = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wattwise_app_info",
			Help: "Application information (always 1)",
		},
	)

	// AppStartTime records when the application started
	AppStartTime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wattwise_app_start_time_seconds",
			Help: "Unix timestamp of when the application started",
		},
	)
)

// Tracker metrics
var (
	ReadingsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wattwise_readings_submitted_total",
			Help: "Meter readings submitted, by outcome",
		},
		[]string{"status"},
	)

	AnomaliesFlagged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wattwise_anomalies_flagged_total",
			Help: "Daily usage records flagged as anomalous",
		},
	)

	BillImports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wattwise_bill_imports_total",
			Help: "Bill imports that started a new billing cycle",
		},
		[]string{"status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wattwise_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)

	StreamMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wattwise_stream_messages_total",
			Help: "Reading messages published to or consumed from the ingest stream",
		},
		[]string{"direction", "status"},
	)
)

func init() {
	// Set app info to 1 (always visible)
	AppInfo.Set(1)
	// Record app start time
	AppStartTime.SetToCurrentTime()
}

// RecordDBQuery records a database query execution
func RecordDBQuery(queryType, table string, duration time.Duration, err error) {
	DBQueriesTotal.WithLabelValues(queryType, table, outcome(err)).Inc()
	DBQueryDuration.WithLabelValues(queryType, table).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics
func UpdateDBConnectionStats(open, inUse, idle int) {
	DBConnectionsOpen.Set(float64(open))
	DBConnectionsInUse.Set(float64(inUse))
	DBConnectionsIdle.Set(float64(idle))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordReading counts a submitted reading. Duplicate slots are counted as "conflict".
func RecordReading(err error, conflict bool) {
	status := outcome(err)
	if conflict {
		status = "conflict"
	}
	ReadingsSubmitted.WithLabelValues(status).Inc()
}

func RecordBillImport(err error) {
	BillImports.WithLabelValues(outcome(err)).Inc()
}

func RecordHTTPRequest(route, method string, status int, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(duration.Seconds())
}

// RecordStreamMessage records a publish ("out") or consume ("in").
func RecordStreamMessage(direction string, err error) {
	StreamMessages.WithLabelValues(direction, outcome(err)).Inc()
}
