package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cuemby/subnet-watchdog/pkg/probe"
	"github.com/cuemby/subnet-watchdog/pkg/runtime"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Serve the load balancer health probe",
	Long: `Serve GET / for a load balancer in front of the node.

The probe answers 200 "OK" when the node health endpoint responds with a
success status within --node-timeout and the watchdog container is running
and has been up for at least --min-uptime. Otherwise it answers 500 with
the reason.

Uptime is measured from the start of the container's task process, read
from --proc-root. When the probe cannot see the host pid namespace it falls
back to the last watchdog restart stamp, and then to the container's last
metadata update, which may predate a restart done by the container's own
restart policy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := runtime.NewContainerdRuntime(
			viper.GetString("containerd-socket"),
			viper.GetString("containerd-namespace"),
		)
		if err != nil {
			return err
		}
		defer rt.Close()
		rt.WithProcRoot(viper.GetString("proc-root"))

		p := probe.New(probe.Config{
			NodeHealthURL:    viper.GetString("node-url"),
			NodeTimeout:      viper.GetDuration("node-timeout"),
			WatchdogFragment: viper.GetString("watchdog-fragment"),
			MinUptime:        viper.GetDuration("min-uptime"),
		}, runtime.NewController(rt))

		return probe.Serve(ctx, viper.GetString("addr"), p)
	},
}

func init() {
	def := probe.DefaultConfig()
	probeCmd.Flags().String("addr", ":8000", "Address to serve the probe on")
	probeCmd.Flags().String("node-url", def.NodeHealthURL, "Node health endpoint")
	probeCmd.Flags().Duration("node-timeout", def.NodeTimeout, "Timeout of the node health request")
	probeCmd.Flags().String("watchdog-fragment", def.WatchdogFragment, "Name fragment of the watchdog container")
	probeCmd.Flags().Duration("min-uptime", def.MinUptime, "Minimum watchdog container uptime")
	addContainerdFlags(probeCmd)
}
