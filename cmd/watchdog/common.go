package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/procfs"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cuemby/subnet-watchdog/pkg/runtime"
	"github.com/cuemby/subnet-watchdog/pkg/source"
)

const defaultPollInterval = time.Second

// restartMargin is added to the stop timeout to bound a whole container restart
const restartMargin = 30 * time.Second

func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("database-url", "", "Postgres connection URL of the subnets database (env DATABASE_URL)")
	cmd.Flags().String("table", source.DefaultTable, "Table holding the subnet bindings")
	cmd.Flags().String("subnets-file", "", "Read subnets from this JSON file instead of Postgres")
}

func addContainerdFlags(cmd *cobra.Command) {
	cmd.Flags().String("containerd-socket", runtime.DefaultSocketPath, "containerd socket path")
	cmd.Flags().String("containerd-namespace", runtime.DefaultNamespace, "containerd namespace of the node containers")
	cmd.Flags().String("proc-root", procfs.DefaultMountPoint, "Host proc filesystem, used to read container start times")
}

// openSource returns the configured desired-state source and its cleanup
func openSource(ctx context.Context) (source.Source, func(), error) {
	if path := viper.GetString("subnets-file"); path != "" {
		return source.NewFileSource(path), func() {}, nil
	}

	pg, err := openPostgres(ctx)
	if err != nil {
		return nil, nil, err
	}
	return pg, pg.Close, nil
}

func openPostgres(ctx context.Context) (*source.PostgresSource, error) {
	dsn := viper.GetString("database-url")
	if dsn == "" {
		return nil, fmt.Errorf("database url is required (--database-url or DATABASE_URL)")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return source.NewPostgresSource(connectCtx, dsn, viper.GetString("table"))
}
