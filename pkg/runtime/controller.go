package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/subnet-watchdog/pkg/log"
	"github.com/cuemby/subnet-watchdog/pkg/metrics"
)

var (
	// ErrContainerNotFound is returned when no container name contains the fragment
	ErrContainerNotFound = errors.New("container not found")

	// ErrRestart is returned when the runtime fails to restart the container
	ErrRestart = errors.New("restart error")
)

// DefaultRestartTimeout bounds a whole restart: the stop grace period plus
// time to create and start the new task
const DefaultRestartTimeout = DefaultStopTimeout + 30*time.Second

// Controller locates node containers by name fragment and restarts them
type Controller struct {
	runtime        Runtime
	restartTimeout time.Duration
}

// NewController creates a controller on top of a runtime
func NewController(rt Runtime) *Controller {
	return &Controller{runtime: rt, restartTimeout: DefaultRestartTimeout}
}

// WithRestartTimeout overrides the deadline of a single restart
func (c *Controller) WithRestartTimeout(timeout time.Duration) *Controller {
	c.restartTimeout = timeout
	return c
}

// Find returns the first container, in listing order, whose name contains fragment.
// Several containers may match; later matches are ignored.
func (c *Controller) Find(ctx context.Context, fragment string) (ContainerInfo, error) {
	containers, err := c.runtime.ListContainers(ctx)
	if err != nil {
		return ContainerInfo{}, fmt.Errorf("failed to list containers: %w", err)
	}
	for _, ctr := range containers {
		if ctr.MatchesFragment(fragment) {
			return ctr, nil
		}
	}
	return ContainerInfo{}, fmt.Errorf("%w: no name includes %q", ErrContainerNotFound, fragment)
}

// Restart finds the node's container and restarts it. Once the container is
// found the restart ignores cancellation of ctx and runs under its own
// deadline, so a shutdown never leaves the container stopped.
func (c *Controller) Restart(ctx context.Context, nodeName, fragment string) (ContainerInfo, error) {
	logger := log.WithNode("containers", nodeName)

	ctr, err := c.Find(ctx, fragment)
	if err != nil {
		outcome := "not_found"
		if errors.Is(err, ErrContainerNotFound) {
			metrics.UpdateComponent(metrics.ComponentRuntime, true, "")
		} else {
			outcome = "error"
			metrics.UpdateComponent(metrics.ComponentRuntime, false, err.Error())
		}
		metrics.ContainerRestartsTotal.WithLabelValues(outcome).Inc()
		return ContainerInfo{}, err
	}

	restartCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.restartTimeout)
	defer cancel()

	if err := c.runtime.RestartContainer(restartCtx, ctr.ID); err != nil {
		metrics.UpdateComponent(metrics.ComponentRuntime, false, err.Error())
		metrics.ContainerRestartsTotal.WithLabelValues("error").Inc()
		return ctr, fmt.Errorf("%w: container %s: %v", ErrRestart, ctr.ID, err)
	}

	metrics.UpdateComponent(metrics.ComponentRuntime, true, "")
	metrics.ContainerRestartsTotal.WithLabelValues("ok").Inc()
	logger.Info().Str("container_id", ctr.ID).Msg("container restarted")
	return ctr, nil
}
