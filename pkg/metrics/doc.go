/*
Package metrics exposes Prometheus metrics and process health for the watchdog.

# Metrics

All series are registered with the default registry in init and served by
Handler:

  - watchdog_reconcile_passes_total{outcome}: passes by outcome
    (succeeded, failed, primary_failed, primary_unhealthy)
  - watchdog_reconcile_duration_seconds: pass duration
  - watchdog_ticks_total{result}: desired-state checks (applied, unchanged,
    pass_failed, fetch_error)
  - watchdog_desired_subnets: subnets in the last applied state
  - watchdog_source_fetch_errors_total: failed fetches
  - watchdog_node_updates_total{node,outcome}: per-node pipelines
  - watchdog_plugin_operations_total{op,result}: plugin copies and removals
  - watchdog_container_restarts_total{result}: container restarts
  - watchdog_health_gate_attempts_total{result}: health gate polls
  - watchdog_health_gate_wait_seconds: time until a node reported healthy

Durations are measured with Timer:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReconcileDuration)

# Health

Components report their state with UpdateComponent. /health is unhealthy
when any component is; /ready additionally requires the source and the
container runtime to have registered. NewRouter wires /metrics, /health and
/ready on a gorilla/mux router and Serve runs it until the context ends.
*/
package metrics
