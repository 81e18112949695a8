package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Reconciliation metrics
	ReconcilePassesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchdog_reconcile_passes_total",
			Help: "Total number of reconciliation passes by outcome",
		},
		[]string{"outcome"},
	)

	ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "watchdog_reconcile_duration_seconds",
			Help:    "Reconciliation pass duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
	)

	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchdog_ticks_total",
			Help: "Total number of desired-state checks by result",
		},
		[]string{"result"},
	)

	DesiredSubnets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "watchdog_desired_subnets",
			Help: "Number of subnets in the last applied desired state",
		},
	)

	SourceFetchErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "watchdog_source_fetch_errors_total",
			Help: "Total number of failed desired-state fetches",
		},
	)

	// Node pipeline metrics
	NodeUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchdog_node_updates_total",
			Help: "Total number of node update pipelines by node and outcome",
		},
		[]string{"node", "outcome"},
	)

	PluginOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchdog_plugin_operations_total",
			Help: "Total number of plugin file operations by operation and result",
		},
		[]string{"op", "result"},
	)

	ContainerRestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchdog_container_restarts_total",
			Help: "Total number of container restarts by result",
		},
		[]string{"result"},
	)

	// Health gate metrics
	HealthGateAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchdog_health_gate_attempts_total",
			Help: "Total number of health gate polls by result",
		},
		[]string{"result"},
	)

	HealthGateWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "watchdog_health_gate_wait_seconds",
			Help:    "Time spent waiting for a node to report healthy",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(ReconcilePassesTotal)
	prometheus.MustRegister(ReconcileDuration)
	prometheus.MustRegister(TicksTotal)
	prometheus.MustRegister(DesiredSubnets)
	prometheus.MustRegister(SourceFetchErrors)
	prometheus.MustRegister(NodeUpdatesTotal)
	prometheus.MustRegister(PluginOperationsTotal)
	prometheus.MustRegister(ContainerRestartsTotal)
	prometheus.MustRegister(HealthGateAttemptsTotal)
	prometheus.MustRegister(HealthGateWait)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
