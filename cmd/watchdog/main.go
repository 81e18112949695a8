package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cuemby/subnet-watchdog/pkg/log"
	"github.com/cuemby/subnet-watchdog/pkg/metrics"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var cfgFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "watchdog",
	Short: "Subnet watchdog - keeps blockchain nodes tracking the desired subnets",
	Long: `The subnet watchdog watches the table of deployed subnets and, whenever
the set changes, rewrites each node's track-subnets config, installs the
VM plugins the subnets need and restarts the node containers one at a time,
waiting for the first node to report healthy before touching the others.

Every flag can also be set through a WATCHDOG_ prefixed environment
variable (--database-url as WATCHDOG_DATABASE_URL) or a YAML config file.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd); err != nil {
			return err
		}
		log.Init(log.Config{
			Level:      log.ParseLevel(viper.GetString("log-level")),
			JSONOutput: viper.GetBool("log-json"),
		})
		metrics.SetVersion(Version)
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"watchdog version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(renderConfigCmd)
	rootCmd.AddCommand(historyCmd)
}

// legacyEnv maps config keys to the bare environment variables deployments already set
var legacyEnv = map[string]string{
	"database-url": "DATABASE_URL",
	"kv-url":       "KV_REST_API_URL",
	"kv-token":     "KV_REST_API_TOKEN",
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/watchdog")
		viper.SetConfigName("watchdog")
	}

	viper.SetEnvPrefix("WATCHDOG")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	for key, env := range legacyEnv {
		_ = viper.BindEnv(key, "WATCHDOG_"+strings.ToUpper(strings.ReplaceAll(key, "-", "_")), env)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintf(os.Stderr, "Warning: failed to read config file %s: %v\n", cfgFile, err)
		}
	}
}

// bindFlags makes viper see the flags of the command being run, so that
// flags shared by name across commands resolve to the right one
func bindFlags(cmd *cobra.Command) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(f.Name, f); err != nil && bindErr == nil {
			bindErr = fmt.Errorf("failed to bind flag %s: %w", f.Name, err)
		}
	})
	return bindErr
}
