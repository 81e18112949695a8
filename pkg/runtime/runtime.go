package runtime

import (
	"context"
	"strings"
	"time"
)

// Container states reported by ListContainers
const (
	StateRunning = "running"
	StateCreated = "created"
	StatePaused  = "paused"
	StateStopped = "stopped"
	StateUnknown = "unknown"
)

// ContainerInfo is one entry of a runtime container listing
type ContainerInfo struct {
	ID    string
	Names []string
	State string

	// StartedAt is when the current task was started, zero if unknown
	StartedAt time.Time
}

// MatchesFragment reports whether any of the container's names contains fragment
func (c ContainerInfo) MatchesFragment(fragment string) bool {
	for _, name := range c.Names {
		if strings.Contains(name, fragment) {
			return true
		}
	}
	return false
}

// Uptime returns how long the container has been running as of now
func (c ContainerInfo) Uptime(now time.Time) time.Duration {
	if c.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(c.StartedAt)
}

// Runtime is the container runtime surface the watchdog needs
type Runtime interface {
	// ListContainers returns running and created containers in listing order
	ListContainers(ctx context.Context) ([]ContainerInfo, error)

	// RestartContainer stops the container's task and starts a new one
	RestartContainer(ctx context.Context, containerID string) error
}
