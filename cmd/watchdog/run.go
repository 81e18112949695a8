package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cuemby/subnet-watchdog/pkg/config"
	"github.com/cuemby/subnet-watchdog/pkg/health"
	"github.com/cuemby/subnet-watchdog/pkg/kv"
	"github.com/cuemby/subnet-watchdog/pkg/log"
	"github.com/cuemby/subnet-watchdog/pkg/metrics"
	"github.com/cuemby/subnet-watchdog/pkg/nodeconfig"
	"github.com/cuemby/subnet-watchdog/pkg/plugins"
	"github.com/cuemby/subnet-watchdog/pkg/reconciler"
	"github.com/cuemby/subnet-watchdog/pkg/runtime"
	"github.com/cuemby/subnet-watchdog/pkg/storage"
	"github.com/cuemby/subnet-watchdog/pkg/trigger"
	"github.com/cuemby/subnet-watchdog/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reconciliation loop",
	Long: `Run the watchdog until SIGINT or SIGTERM.

The desired subnets are read from Postgres (--database-url) or from a JSON
subnets file (--subnets-file). They are re-read every --poll-interval and,
when --kafka-brokers is set, on every message of the table's change topic.

With more than one node, the primary node is taken from --primary or, when
the KV store is configured, from the key named by --kv-primary-key. The
primary is updated first and must report healthy before any other node is
restarted.

Examples:
  # Single node, polling Postgres every second
  watchdog run --nodes nodes.yaml --database-url postgres://...

  # Two nodes, primary from the KV store, change feed from Kafka
  KV_REST_API_URL=https://kv.example KV_REST_API_TOKEN=... \
    watchdog run --nodes nodes.yaml --kafka-brokers kafka:9092`,
	RunE: runWatchdog,
}

func init() {
	runCmd.Flags().String("nodes", "nodes.yaml", "YAML file describing the managed nodes")
	addSourceFlags(runCmd)
	runCmd.Flags().Duration("poll-interval", defaultPollInterval, "Interval between desired-state checks")

	runCmd.Flags().StringSlice("kafka-brokers", nil, "Kafka brokers of the subnets change feed (empty disables)")
	runCmd.Flags().String("kafka-topic", "subnets.public.blockchains_lancer", "Kafka topic carrying subnet table changes")
	runCmd.Flags().String("kafka-group", "subnet-watchdog", "Kafka consumer group")

	runCmd.Flags().String("primary", "", "Node ID or name of the node restarted first")
	runCmd.Flags().String("kv-url", "", "REST KV store URL used to look up the primary node")
	runCmd.Flags().String("kv-token", "", "REST KV store bearer token")
	runCmd.Flags().String("kv-primary-key", kv.DefaultPrimaryKey, "KV key holding the primary node ID")

	def := health.DefaultConfig()
	runCmd.Flags().Int("health-attempts", def.MaxAttempts, "Health checks made on the primary before giving up")
	runCmd.Flags().Duration("health-interval", def.Interval, "Pause between primary health checks")
	runCmd.Flags().Duration("health-timeout", def.Timeout, "Timeout of one health check")

	addContainerdFlags(runCmd)
	runCmd.Flags().Duration("stop-timeout", runtime.DefaultStopTimeout, "Grace period before a restarting container is killed")

	runCmd.Flags().Int("parallelism", 0, "Max concurrent node updates without a primary (0 = all)")
	runCmd.Flags().String("metrics-addr", "", "Address serving /metrics, /health and /ready (empty disables)")
	runCmd.Flags().String("data-dir", "", "Directory of the pass history database (empty disables)")
}

func runWatchdog(cmd *cobra.Command, args []string) error {
	logger := log.WithComponent("main")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	nodes, err := config.LoadNodes(viper.GetString("nodes"))
	if err != nil {
		return err
	}

	primary, err := resolvePrimary(ctx, nodes)
	if err != nil {
		return err
	}

	src, closeSource, err := openSource(ctx)
	if err != nil {
		return err
	}
	defer closeSource()

	rt, err := runtime.NewContainerdRuntime(
		viper.GetString("containerd-socket"),
		viper.GetString("containerd-namespace"),
	)
	if err != nil {
		return err
	}
	defer rt.Close()
	rt.WithProcRoot(viper.GetString("proc-root"))
	stopTimeout := viper.GetDuration("stop-timeout")
	rt.WithStopTimeout(stopTimeout)

	if err := rt.Ping(ctx); err != nil {
		metrics.UpdateComponent(metrics.ComponentRuntime, false, err.Error())
		logger.Warn().Err(err).Msg("containerd not reachable yet, restarts will fail until it is")
	} else {
		metrics.UpdateComponent(metrics.ComponentRuntime, true, "")
	}

	var history storage.HistoryStore
	if dataDir := viper.GetString("data-dir"); dataDir != "" {
		store, err := storage.NewBoltStore(dataDir)
		if err != nil {
			return err
		}
		defer store.Close()
		history = store
	}

	coordinator, err := reconciler.New(reconciler.Options{
		Source: src,
		Nodes:  nodes,
		Pipeline: reconciler.NewNodePipeline(
			nodeconfig.NewWriter(),
			plugins.NewSynchronizer(),
			runtime.NewController(rt).WithRestartTimeout(stopTimeout+restartMargin),
		),
		Primary: primary,
		Gate: health.NewGate(health.Config{
			MaxAttempts: viper.GetInt("health-attempts"),
			Interval:    viper.GetDuration("health-interval"),
			Timeout:     viper.GetDuration("health-timeout"),
		}),
		Parallelism: viper.GetInt("parallelism"),
		History:     history,
	})
	if err != nil {
		return err
	}

	if addr := viper.GetString("metrics-addr"); addr != "" {
		go func() {
			logger.Info().Str("addr", addr).Msg("metrics server listening")
			if err := metrics.Serve(ctx, addr); err != nil {
				logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	if err := coordinator.Run(ctx, buildTrigger()); err != nil {
		return err
	}
	logger.Info().Msg("shutdown complete")
	return nil
}

// resolvePrimary picks the primary node from --primary or the KV store.
// Without either, passes update all nodes at once.
func resolvePrimary(ctx context.Context, nodes []*types.NodeDescriptor) (*types.NodeDescriptor, error) {
	logger := log.WithComponent("main")

	id := viper.GetString("primary")
	if id == "" {
		client := kv.NewClient(viper.GetString("kv-url"), viper.GetString("kv-token"))
		if !client.Configured() {
			if len(nodes) > 1 {
				logger.Warn().Int("nodes", len(nodes)).Msg("no primary configured, nodes will restart together")
			}
			return nil, nil
		}

		key := viper.GetString("kv-primary-key")
		value, found, err := client.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to look up primary node: %w", err)
		}
		if !found || value == "" {
			return nil, fmt.Errorf("primary node key %q is not set", key)
		}
		id = value
	}

	primary, err := reconciler.ResolvePrimary(nodes, id)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("node", primary.Name).Str("node_id", id).Msg("primary node resolved")
	return primary, nil
}

func buildTrigger() trigger.Trigger {
	ticker := trigger.NewTicker(viper.GetDuration("poll-interval"))

	brokers := splitList(viper.GetStringSlice("kafka-brokers"))
	if len(brokers) == 0 {
		return ticker
	}
	return trigger.Merge(ticker, trigger.NewKafka(trigger.KafkaConfig{
		Brokers: brokers,
		Topic:   viper.GetString("kafka-topic"),
		GroupID: viper.GetString("kafka-group"),
	}))
}

// splitList flattens comma separated entries, as set through the environment
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
