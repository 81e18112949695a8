package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/subnet-watchdog/pkg/log"
	"github.com/cuemby/subnet-watchdog/pkg/metrics"
)

// ErrNotHealthy is returned when the attempt budget runs out
var ErrNotHealthy = errors.New("did not become healthy")

// Gate waits for a checker to report healthy with a bounded, fixed-interval retry
type Gate struct {
	config Config
}

// NewGate creates a gate, filling zero fields from DefaultConfig
func NewGate(cfg Config) *Gate {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Gate{config: cfg}
}

// Config returns the effective gate settings
func (g *Gate) Config() Config {
	return g.config
}

// Wait polls checker until it reports healthy or MaxAttempts checks have failed.
// It sleeps Interval between attempts, never after the last one.
func (g *Gate) Wait(ctx context.Context, name string, checker Checker) error {
	logger := log.WithNode("health-gate", name)
	timer := metrics.NewTimer()

	var last Result
	for attempt := 1; attempt <= g.config.MaxAttempts; attempt++ {
		checkCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
		last = checker.Check(checkCtx)
		cancel()

		if last.Healthy {
			metrics.HealthGateAttemptsTotal.WithLabelValues("healthy").Inc()
			timer.ObserveDuration(metrics.HealthGateWait)
			logger.Info().Int("attempt", attempt).Msg("node is healthy")
			return nil
		}

		metrics.HealthGateAttemptsTotal.WithLabelValues("unhealthy").Inc()
		logger.Debug().
			Int("attempt", attempt).
			Int("max_attempts", g.config.MaxAttempts).
			Str("reason", last.Message).
			Msg("node not healthy yet")

		if attempt == g.config.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("health gate for %s: %w", name, ctx.Err())
		case <-time.After(g.config.Interval):
		}
	}

	return fmt.Errorf("%s %w after %d attempts: %s", name, ErrNotHealthy, g.config.MaxAttempts, last.Message)
}
