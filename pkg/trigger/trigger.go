package trigger

import (
	"context"
	"sync"
	"time"
)

// Trigger emits a signal whenever the desired state may have changed.
// Signals coalesce: a receiver that is busy sees at most one pending signal.
// The channel is closed once ctx is cancelled.
type Trigger interface {
	Start(ctx context.Context) <-chan struct{}
}

// notify queues a signal without blocking when one is already pending
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Ticker signals at a fixed interval
type Ticker struct {
	interval time.Duration
}

// NewTicker creates a polling trigger
func NewTicker(interval time.Duration) *Ticker {
	return &Ticker{interval: interval}
}

// Start begins ticking until ctx is cancelled
func (t *Ticker) Start(ctx context.Context) <-chan struct{} {
	out := make(chan struct{}, 1)

	go func() {
		defer close(out)

		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				notify(out)
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// Merge fans several triggers into one
func Merge(triggers ...Trigger) Trigger {
	return merged(triggers)
}

type merged []Trigger

func (m merged) Start(ctx context.Context) <-chan struct{} {
	out := make(chan struct{}, 1)

	var wg sync.WaitGroup
	for _, t := range m {
		in := t.Start(ctx)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range in {
				notify(out)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}
