package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cuemby/subnet-watchdog/pkg/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded reconciliation passes",
	Long: `List the reconciliation passes recorded in the history database,
newest first. The database is only written when run is given --data-dir
and is locked while the watchdog runs, so read it from a stopped watchdog
or a copy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.NewBoltStore(viper.GetString("data-dir"))
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.ListPasses(viper.GetInt("limit"))
		if err != nil {
			return fmt.Errorf("failed to list passes: %w", err)
		}
		if len(records) == 0 {
			fmt.Println("No passes recorded")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTARTED\tDURATION\tOUTCOME\tPHASE\tSUBNETS\tERROR")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				shortID(r.ID),
				r.StartedAt.Local().Format(time.DateTime),
				r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
				r.Outcome,
				orDash(string(r.Phase)),
				len(r.SubnetIDs),
				orDash(strings.ReplaceAll(r.Error, "\n", "; ")),
			)
		}
		return w.Flush()
	},
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	historyCmd.Flags().String("data-dir", "./watchdog-data", "Directory of the pass history database")
	historyCmd.Flags().Int("limit", 20, "Number of passes to show (0 = all)")
}
