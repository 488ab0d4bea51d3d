package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the stock widget.
type Metrics struct {
	// Window cache
	ResyncsTotal *prometheus.CounterVec // labels: action=unchanged|rebuild|slide|live
	ResyncDur    prometheus.Histogram

	// Archive gateway
	ArchiveQueries  *prometheus.CounterVec // labels: agg
	ArchiveErrors   *prometheus.CounterVec // labels: agg
	ArchiveQueryDur prometheus.Histogram
	ArchivePoints   prometheus.Histogram

	// Coordinator
	PayloadsTotal    *prometheus.CounterVec // labels: kind=full|partial
	FailuresTotal    *prometheus.CounterVec // labels: op
	CoordinatorState prometheus.Gauge       // 0=uninitialized, 1=active, 2=degraded
	StatusReports    *prometheus.CounterVec // labels: code

	// Circuit breakers
	BreakerState *prometheus.GaugeVec   // labels: name; 0=closed, 1=open, 2=half-open
	BreakerTrips *prometheus.CounterVec // labels: name

	// Visualization sink
	WSClients       prometheus.Gauge
	DroppedMessages prometheus.Counter

	// Notifications
	NotificationsTotal *prometheus.CounterVec // labels: channel, result=ok|error

	// Feeder
	SamplesTotal    prometheus.Counter
	SQLiteCommitDur prometheus.Histogram
}

// NewMetrics creates the widget metrics and registers them on reg.
// A nil reg registers on the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		ResyncsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockwidget_resyncs_total",
			Help: "Window cache resyncs by outcome",
		}, []string{"action"}),
		ResyncDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stockwidget_resync_duration_seconds",
			Help:    "Window cache resync latency including archive queries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		ArchiveQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockwidget_archive_queries_total",
			Help: "Archive queries issued (by aggregation)",
		}, []string{"agg"}),
		ArchiveErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockwidget_archive_errors_total",
			Help: "Archive queries that failed (by aggregation)",
		}, []string{"agg"}),
		ArchiveQueryDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stockwidget_archive_query_duration_seconds",
			Help:    "Archive query latency",
			Buckets: prometheus.DefBuckets,
		}),
		ArchivePoints: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stockwidget_archive_points",
			Help:    "Points returned per archive query",
			Buckets: []float64{0, 1, 10, 100, 1000, 10000},
		}),

		PayloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockwidget_payloads_total",
			Help: "Payloads pushed to the visualization sink (by kind)",
		}, []string{"kind"}),
		FailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockwidget_failures_total",
			Help: "Coordinator operations that failed (by operation)",
		}, []string{"op"}),
		CoordinatorState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stockwidget_coordinator_state",
			Help: "Coordinator state (0=uninitialized, 1=active, 2=degraded)",
		}),
		StatusReports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockwidget_status_reports_total",
			Help: "Operator status reports (by code)",
		}, []string{"code"}),

		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stockwidget_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
		BreakerTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockwidget_circuit_breaker_trips_total",
			Help: "Times a circuit breaker tripped open",
		}, []string{"name"}),

		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stockwidget_ws_clients",
			Help: "Connected WebSocket clients",
		}),
		DroppedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockwidget_dropped_messages_total",
			Help: "Envelopes dropped because a client send buffer was full",
		}),

		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockwidget_notifications_total",
			Help: "Status notifications sent (by channel and result)",
		}, []string{"channel", "result"}),

		SamplesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockwidget_feeder_samples_total",
			Help: "Samples generated by the feeder",
		}),
		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stockwidget_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.ResyncsTotal,
		m.ResyncDur,
		m.ArchiveQueries,
		m.ArchiveErrors,
		m.ArchiveQueryDur,
		m.ArchivePoints,
		m.PayloadsTotal,
		m.FailuresTotal,
		m.CoordinatorState,
		m.StatusReports,
		m.BreakerState,
		m.BreakerTrips,
		m.WSClients,
		m.DroppedMessages,
		m.NotificationsTotal,
		m.SamplesTotal,
		m.SQLiteCommitDur,
	)

	return m
}

// ObserveResync records one window cache resync. Matches window.Config.OnResync
// once the action is converted to a string.
func (m *Metrics) ObserveResync(action string, elapsed time.Duration) {
	m.ResyncsTotal.WithLabelValues(action).Inc()
	m.ResyncDur.Observe(elapsed.Seconds())
}

// ObserveQuery records one archive query.
func (m *Metrics) ObserveQuery(agg string, elapsed time.Duration, points int, err error) {
	m.ArchiveQueries.WithLabelValues(agg).Inc()
	m.ArchiveQueryDur.Observe(elapsed.Seconds())
	if err != nil {
		m.ArchiveErrors.WithLabelValues(agg).Inc()
		return
	}
	m.ArchivePoints.Observe(float64(points))
}

// SetBreakerState records a breaker transition. to is the numeric state
// (0=closed, 1=open, 2=half-open); entering open counts as a trip.
func (m *Metrics) SetBreakerState(name string, to int) {
	m.BreakerState.WithLabelValues(name).Set(float64(to))
	if to == 1 {
		m.BreakerTrips.WithLabelValues(name).Inc()
	}
}
