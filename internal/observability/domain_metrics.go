package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the domain counters.
const (
	OutcomeOK             = "ok"
	OutcomeTransportError = "transport_error"
	OutcomeShapeError     = "shape_error"
	OutcomeNoRows         = "no_rows"
	OutcomeError          = "error"
)

var (
	askRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tablechat_ask_requests_total",
			Help: "Total number of questions handled by the session orchestrator.",
		},
	)
	sessionsSeededTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tablechat_sessions_seeded_total",
			Help: "Total number of sessions seeded with a schema preview.",
		},
	)
	chatCompletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablechat_chat_completions_total",
			Help: "Total number of chat completion calls by outcome.",
		},
		[]string{"outcome"},
	)
	chatCompletionLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tablechat_chat_completion_latency_ms",
			Help:    "Chat completion round trip latency in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 20000, 30000},
		},
	)
	adhocQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablechat_adhoc_queries_total",
			Help: "Total number of pass-through queries executed by outcome.",
		},
		[]string{"outcome"},
	)
	tableLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablechat_table_loads_total",
			Help: "Total number of raw_data table loads by mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)
	tableRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tablechat_table_rows",
			Help: "Row count of the most recently loaded raw_data table.",
		},
	)
	snapshotUploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablechat_snapshot_uploads_total",
			Help: "Total number of parquet snapshot uploads by outcome.",
		},
		[]string{"outcome"},
	)
	snapshotsPrunedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tablechat_snapshots_pruned_total",
			Help: "Total number of parquet snapshots deleted by retention.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		askRequestsTotal,
		sessionsSeededTotal,
		chatCompletionsTotal,
		chatCompletionLatencyMs,
		adhocQueriesTotal,
		tableLoadsTotal,
		tableRows,
		snapshotUploadsTotal,
		snapshotsPrunedTotal,
	)
}

func IncrementAskRequests() {
	askRequestsTotal.Inc()
}

func IncrementSessionsSeeded() {
	sessionsSeededTotal.Inc()
}

func ObserveChatCompletion(outcome string, elapsed time.Duration) {
	chatCompletionsTotal.WithLabelValues(outcome).Inc()
	chatCompletionLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveAdhocQuery(outcome string) {
	adhocQueriesTotal.WithLabelValues(outcome).Inc()
}

func ObserveTableLoad(mode, outcome string, rows int) {
	tableLoadsTotal.WithLabelValues(mode, outcome).Inc()
	if outcome == OutcomeOK && rows >= 0 {
		tableRows.Set(float64(rows))
	}
}

func ObserveSnapshotUpload(outcome string) {
	snapshotUploadsTotal.WithLabelValues(outcome).Inc()
}

func AddSnapshotsPruned(count int) {
	if count > 0 {
		snapshotsPrunedTotal.Add(float64(count))
	}
}
