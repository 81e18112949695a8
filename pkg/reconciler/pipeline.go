package reconciler

import (
	"context"
	"fmt"

	"github.com/cuemby/subnet-watchdog/pkg/log"
	"github.com/cuemby/subnet-watchdog/pkg/metrics"
	"github.com/cuemby/subnet-watchdog/pkg/plugins"
	"github.com/cuemby/subnet-watchdog/pkg/runtime"
	"github.com/cuemby/subnet-watchdog/pkg/types"
)

// ConfigWriter merges the desired subnets into a node's config file
type ConfigWriter interface {
	Write(node *types.NodeDescriptor, state types.DesiredState) error
}

// PluginSyncer converges a node's plugin directory
type PluginSyncer interface {
	Sync(node *types.NodeDescriptor, vmIDs []string) (plugins.SyncResult, error)
}

// ContainerRestarter restarts the container running a node
type ContainerRestarter interface {
	Restart(ctx context.Context, nodeName, fragment string) (runtime.ContainerInfo, error)
}

// Pipeline applies a desired state to one node
type Pipeline interface {
	Update(ctx context.Context, node *types.NodeDescriptor, state types.DesiredState) error
}

// NodePipeline runs config write, plugin sync and container restart in order.
// The first failing step aborts the node's update.
type NodePipeline struct {
	config     ConfigWriter
	plugins    PluginSyncer
	containers ContainerRestarter
}

// NewNodePipeline creates the single-node update pipeline
func NewNodePipeline(config ConfigWriter, syncer PluginSyncer, containers ContainerRestarter) *NodePipeline {
	return &NodePipeline{
		config:     config,
		plugins:    syncer,
		containers: containers,
	}
}

// Update applies state to node
func (p *NodePipeline) Update(ctx context.Context, node *types.NodeDescriptor, state types.DesiredState) error {
	logger := log.WithNode("pipeline", node.Name)

	if err := p.config.Write(node, state); err != nil {
		metrics.NodeUpdatesTotal.WithLabelValues(node.Name, "config_failed").Inc()
		return fmt.Errorf("write config: %w", err)
	}

	result, err := p.plugins.Sync(node, state.VMIDs())
	if err != nil {
		metrics.NodeUpdatesTotal.WithLabelValues(node.Name, "plugins_failed").Inc()
		return fmt.Errorf("sync plugins: %w", err)
	}
	if len(result.Failed) > 0 {
		logger.Warn().Int("failed", len(result.Failed)).Msg("some plugins were not synchronized, retrying next pass")
	}

	ctr, err := p.containers.Restart(ctx, node.Name, node.ContainerNameFragment)
	if err != nil {
		metrics.NodeUpdatesTotal.WithLabelValues(node.Name, "restart_failed").Inc()
		return fmt.Errorf("restart container: %w", err)
	}

	metrics.NodeUpdatesTotal.WithLabelValues(node.Name, "succeeded").Inc()
	logger.Info().
		Str("container_id", ctr.ID).
		Int("subnets", state.Len()).
		Strs("plugins_added", result.Added).
		Strs("plugins_removed", result.Removed).
		Msg("node updated")
	return nil
}
