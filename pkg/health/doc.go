/*
Package health checks node health endpoints and gates rollouts on them.

HTTPChecker issues one GET against a node's health URL. By default the node
counts as healthy only when the request completes within the timeout, the
status is 2xx and the JSON body carries "healthy": true; anything else,
including a body without the flag, is unhealthy. WithStatusOnly drops the
body check for endpoints where any successful answer is enough.

Gate turns a checker into a bounded wait:

	gate := health.NewGate(health.Config{MaxAttempts: 60, Interval: time.Second})
	if err := gate.Wait(ctx, "avalanche", health.NewHTTPChecker(url)); err != nil {
		// errors.Is(err, health.ErrNotHealthy) after 60 failed checks
	}

The gate polls at a fixed interval, never sleeps after the last attempt and
returns as soon as one check is healthy. Cancelling ctx ends the wait early.
*/
package health
