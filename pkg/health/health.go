package health

import (
	"context"
	"time"
)

// Result represents the outcome of a health check
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is the interface that all health checkers must implement
type Checker interface {
	// Check performs the health check and returns the result
	Check(ctx context.Context) Result
}

// CheckerFunc adapts a function to the Checker interface
type CheckerFunc func(ctx context.Context) Result

// Check calls f(ctx)
func (f CheckerFunc) Check(ctx context.Context) Result {
	return f(ctx)
}

// Config controls the health gate
type Config struct {
	// MaxAttempts is the number of checks made before giving up
	MaxAttempts int

	// Interval is the fixed pause between two checks
	Interval time.Duration

	// Timeout bounds a single check
	Timeout time.Duration
}

// DefaultConfig returns the gate settings used for node startup
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 60,
		Interval:    time.Second,
		Timeout:     5 * time.Second,
	}
}
