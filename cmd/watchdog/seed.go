package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cuemby/subnet-watchdog/pkg/source"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert subnets from a JSON file into the database",
	Long: `Insert every subnet of a subnets file into the subnets table.

The file has the form:
  {"subnets": [{"name": "...", "subnetId": "...", "vmId": "..."}]}

Examples:
  watchdog seed -f testnet.json --database-url postgres://...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := source.LoadEntries(viper.GetString("file"))
		if err != nil {
			return err
		}

		pg, err := openPostgres(cmd.Context())
		if err != nil {
			return err
		}
		defer pg.Close()

		n, err := pg.Insert(cmd.Context(), entries)
		if err != nil {
			return err
		}

		fmt.Printf("✓ Inserted %d subnets\n", n)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringP("file", "f", "", "Subnets JSON file (required)")
	seedCmd.Flags().String("database-url", "", "Postgres connection URL of the subnets database (env DATABASE_URL)")
	seedCmd.Flags().String("table", source.DefaultTable, "Table holding the subnet bindings")
	_ = seedCmd.MarkFlagRequired("file")
}
