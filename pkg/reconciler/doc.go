/*
Package reconciler keeps the managed nodes in step with the desired subnet set.

The Coordinator owns the last successfully applied DesiredState, empty at
startup. Each Tick fetches the current state and compares subnet ID sets;
when they differ it runs a pass and only advances the previous state if the
pass succeeded, so a failed change is retried wholesale on the next tick.
Ticks are serialized by a mutex and by Run's single loop, which ticks once
at startup and then once per trigger signal.

A pass updates each node through a Pipeline. NodePipeline writes the config,
synchronizes plugins and restarts the container, stopping at the first
failing step.

# Rolling passes

With a primary node and more than one managed node, a pass is the sequence

	primary-pending ──update + health gate──▶ primary-healthy
	                                              │
	done ◀──update each secondary in order── secondary-pending

A primary update failure ends the pass with ErrPrimaryUpdate and an
exhausted health gate with ErrPrimaryUnhealthy; in both cases no secondary
is touched. A failing secondary does not stop the others but fails the pass.

Without a primary every node is updated concurrently and the pass fails if
any node failed.

Each pass is timed, counted by outcome and, when a history store is set,
stored as a PassRecord.
*/
package reconciler
