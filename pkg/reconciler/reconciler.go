package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cuemby/subnet-watchdog/pkg/health"
	"github.com/cuemby/subnet-watchdog/pkg/log"
	"github.com/cuemby/subnet-watchdog/pkg/metrics"
	"github.com/cuemby/subnet-watchdog/pkg/source"
	"github.com/cuemby/subnet-watchdog/pkg/storage"
	"github.com/cuemby/subnet-watchdog/pkg/trigger"
	"github.com/cuemby/subnet-watchdog/pkg/types"
)

var (
	// ErrPrimaryUpdate is returned when the primary node's pipeline fails
	ErrPrimaryUpdate = errors.New("primary update failed")

	// ErrPrimaryUnhealthy is returned when the primary was updated but never reported healthy
	ErrPrimaryUnhealthy = errors.New("primary updated but not healthy")
)

// HealthWaiter blocks until a checker reports healthy or gives up
type HealthWaiter interface {
	Wait(ctx context.Context, name string, checker health.Checker) error
}

// Options configures a Coordinator
type Options struct {
	Source   source.Source
	Nodes    []*types.NodeDescriptor
	Pipeline Pipeline

	// Primary, when set and more than one node is managed, is updated and
	// health-confirmed before any other node is touched
	Primary *types.NodeDescriptor
	Gate    HealthWaiter

	// Checker builds the health checker for a node; defaults to an HTTP check of HealthURL
	Checker func(node *types.NodeDescriptor) health.Checker

	// Parallelism caps concurrent node updates on the unordered path; 0 means no cap
	Parallelism int

	// History, when set, receives a record of every pass
	History storage.HistoryStore
}

// Coordinator keeps managed nodes in step with the desired subnet set
type Coordinator struct {
	opts   Options
	logger zerolog.Logger

	// mu serializes ticks and guards previous
	mu       sync.Mutex
	previous types.DesiredState
}

// New validates opts and creates a coordinator with an empty previous state
func New(opts Options) (*Coordinator, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if opts.Pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if len(opts.Nodes) == 0 {
		return nil, fmt.Errorf("at least one node is required")
	}
	if opts.Primary != nil {
		found := false
		for _, n := range opts.Nodes {
			if n == opts.Primary {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: primary %q is not a managed node", ErrNoSuchNode, opts.Primary.Name)
		}
		if opts.Gate == nil {
			return nil, fmt.Errorf("health gate is required with a primary node")
		}
	}
	if opts.Checker == nil {
		opts.Checker = func(node *types.NodeDescriptor) health.Checker {
			return health.NewHTTPChecker(node.HealthURL)
		}
	}

	return &Coordinator{
		opts:     opts,
		logger:   log.WithComponent("coordinator"),
		previous: types.NewDesiredState(nil),
	}, nil
}

// Previous returns the last successfully applied desired state
func (c *Coordinator) Previous() types.DesiredState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.previous
}

// Rolling reports whether passes use the primary-first sequence
func (c *Coordinator) Rolling() bool {
	return c.opts.Primary != nil && len(c.opts.Nodes) > 1
}

// Run ticks once immediately and then once per trigger signal until ctx is
// cancelled or the trigger stops. Tick errors are logged and retried on the
// next signal.
func (c *Coordinator) Run(ctx context.Context, trig trigger.Trigger) error {
	signals := trig.Start(ctx)

	c.logger.Info().
		Int("nodes", len(c.opts.Nodes)).
		Bool("rolling", c.Rolling()).
		Msg("coordinator started")

	_ = c.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("coordinator stopped")
			return nil
		case _, ok := <-signals:
			if !ok {
				c.logger.Info().Msg("trigger closed, coordinator stopped")
				return nil
			}
			_ = c.Tick(ctx)
		}
	}
}

// Tick fetches the desired state and runs a pass when its subnet set differs
// from the last applied one. The previous state only advances when the pass
// succeeds, so a failed change is retried on the next tick.
func (c *Coordinator) Tick(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := source.Fetch(ctx, c.opts.Source)
	if err != nil {
		metrics.SourceFetchErrors.Inc()
		metrics.TicksTotal.WithLabelValues("fetch_error").Inc()
		metrics.UpdateComponent(metrics.ComponentSource, false, err.Error())
		c.logger.Error().Err(err).Msg("failed to fetch desired state")
		return fmt.Errorf("fetch desired state: %w", err)
	}
	metrics.UpdateComponent(metrics.ComponentSource, true, "")

	if current.Equal(c.previous) {
		metrics.TicksTotal.WithLabelValues("unchanged").Inc()
		c.logger.Debug().Int("subnets", current.Len()).Msg("desired state unchanged")
		return nil
	}

	c.logger.Info().
		Int("previous", c.previous.Len()).
		Int("current", current.Len()).
		Strs("subnets", current.SubnetIDs()).
		Msg("desired state changed")

	if err := c.pass(ctx, current); err != nil {
		metrics.TicksTotal.WithLabelValues("pass_failed").Inc()
		return err
	}

	c.previous = current
	metrics.TicksTotal.WithLabelValues("applied").Inc()
	metrics.DesiredSubnets.Set(float64(current.Len()))
	return nil
}

// pass applies state to every node, recording its outcome
func (c *Coordinator) pass(ctx context.Context, state types.DesiredState) error {
	record := &types.PassRecord{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		SubnetIDs: state.SubnetIDs(),
		Nodes:     nodeNames(c.opts.Nodes),
	}
	logger := log.WithPassID(record.ID)
	timer := metrics.NewTimer()

	var err error
	if c.Rolling() {
		record.Phase, err = c.rollingPass(ctx, state)
	} else {
		err = c.unorderedPass(ctx, state)
	}

	timer.ObserveDuration(metrics.ReconcileDuration)
	record.FinishedAt = time.Now().UTC()
	record.Outcome = outcomeOf(err)
	if err != nil {
		record.Error = err.Error()
	}
	metrics.ReconcilePassesTotal.WithLabelValues(string(record.Outcome)).Inc()

	if err != nil {
		metrics.UpdateComponent(metrics.ComponentReconciler, false, err.Error())
		logger.Error().Err(err).
			Str("outcome", string(record.Outcome)).
			Str("phase", string(record.Phase)).
			Msg("reconciliation pass failed, will retry on next tick")
	} else {
		metrics.UpdateComponent(metrics.ComponentReconciler, true, "")
		logger.Info().
			Dur("duration", timer.Duration()).
			Int("subnets", state.Len()).
			Msg("reconciliation pass succeeded")
	}

	if c.opts.History != nil {
		if herr := c.opts.History.RecordPass(record); herr != nil {
			logger.Warn().Err(herr).Msg("failed to record pass history")
		}
	}
	return err
}

// rollingPass walks the primary-first sequence and returns the phase it
// stopped in
func (c *Coordinator) rollingPass(ctx context.Context, state types.DesiredState) (types.RolloutPhase, error) {
	phase := types.PhasePrimaryPending
	for phase != types.PhaseDone {
		next, err := c.advance(ctx, phase, state)
		if err != nil {
			return phase, err
		}
		phase = next
	}
	return phase, nil
}

// advance performs the work of one rollout phase and returns the next phase
func (c *Coordinator) advance(ctx context.Context, phase types.RolloutPhase, state types.DesiredState) (types.RolloutPhase, error) {
	primary := c.opts.Primary

	switch phase {
	case types.PhasePrimaryPending:
		if err := c.opts.Pipeline.Update(ctx, primary, state); err != nil {
			return phase, fmt.Errorf("%w: node %s: %w", ErrPrimaryUpdate, primary.Name, err)
		}
		if err := c.opts.Gate.Wait(ctx, primary.Name, c.opts.Checker(primary)); err != nil {
			return phase, fmt.Errorf("%w: node %s: %w", ErrPrimaryUnhealthy, primary.Name, err)
		}
		return types.PhasePrimaryHealthy, nil

	case types.PhasePrimaryHealthy:
		c.logger.Info().Str("node", primary.Name).Msg("primary healthy, updating secondaries")
		return types.PhaseSecondaryPending, nil

	case types.PhaseSecondaryPending:
		var errs []error
		for _, node := range c.opts.Nodes {
			if node == primary {
				continue
			}
			if err := c.opts.Pipeline.Update(ctx, node, state); err != nil {
				nodeLog := log.WithNode("coordinator", node.Name)
				nodeLog.Error().Err(err).Msg("secondary update failed")
				errs = append(errs, fmt.Errorf("node %s: %w", node.Name, err))
			}
		}
		if err := errors.Join(errs...); err != nil {
			return phase, err
		}
		return types.PhaseDone, nil

	default:
		return phase, fmt.Errorf("unknown rollout phase %q", phase)
	}
}

// unorderedPass updates every node concurrently; it fails if any node failed
func (c *Coordinator) unorderedPass(ctx context.Context, state types.DesiredState) error {
	var g errgroup.Group
	if c.opts.Parallelism > 0 {
		g.SetLimit(c.opts.Parallelism)
	}

	errs := make([]error, len(c.opts.Nodes))
	for i, node := range c.opts.Nodes {
		g.Go(func() error {
			if err := c.opts.Pipeline.Update(ctx, node, state); err != nil {
				nodeLog := log.WithNode("coordinator", node.Name)
				nodeLog.Error().Err(err).Msg("node update failed")
				errs[i] = fmt.Errorf("node %s: %w", node.Name, err)
			}
			return errs[i]
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

func outcomeOf(err error) types.PassOutcome {
	switch {
	case err == nil:
		return types.PassOutcomeSucceeded
	case errors.Is(err, ErrPrimaryUnhealthy):
		return types.PassOutcomePrimaryUnhealthy
	case errors.Is(err, ErrPrimaryUpdate):
		return types.PassOutcomePrimaryFailed
	default:
		return types.PassOutcomeFailed
	}
}

func nodeNames(nodes []*types.NodeDescriptor) []string {
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.Name)
	}
	return names
}
