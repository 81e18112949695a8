package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingChecker(healthyFrom int32) (*atomic.Int32, Checker) {
	var calls atomic.Int32
	return &calls, CheckerFunc(func(ctx context.Context) Result {
		n := calls.Add(1)
		return Result{Healthy: healthyFrom > 0 && n >= healthyFrom, Message: "stub"}
	})
}

func TestGate_NeverHealthyBoundedRetry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"healthy":false}`))
	}))
	defer server.Close()

	var calls atomic.Int32
	inner := NewHTTPChecker(server.URL)
	checker := CheckerFunc(func(ctx context.Context) Result {
		calls.Add(1)
		return inner.Check(ctx)
	})

	gate := NewGate(Config{MaxAttempts: 3, Interval: time.Second, Timeout: time.Second})

	start := time.Now()
	err := gate.Wait(context.Background(), "primary", checker)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotHealthy))
	assert.Equal(t, int32(3), calls.Load())
	assert.GreaterOrEqual(t, elapsed, 2*time.Second)
	assert.Less(t, elapsed, 5*time.Second)
}

func TestGate_ReturnsOnFirstHealthy(t *testing.T) {
	calls, checker := countingChecker(2)
	gate := NewGate(Config{MaxAttempts: 5, Interval: 10 * time.Millisecond})

	err := gate.Wait(context.Background(), "node", checker)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGate_ContextCancelled(t *testing.T) {
	calls, checker := countingChecker(0)
	gate := NewGate(Config{MaxAttempts: 100, Interval: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := gate.Wait(ctx, "node", checker)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, errors.Is(err, ErrNotHealthy))
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewGate_Defaults(t *testing.T) {
	gate := NewGate(Config{})
	assert.Equal(t, DefaultConfig(), gate.Config())
}
