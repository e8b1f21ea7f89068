// Package cmd - history command
package cmd

import (
	"github.com/spf13/cobra"

	"fibre-cost/internal/app"
	"fibre-cost/internal/config"
)

var historyLimit int

// historyCmd prints the rolling window of committed estimates
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent committed estimates",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "show only the most recent N records")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	f, err := formatter()
	if err != nil {
		return err
	}

	records, err := app.NewHistory(config.Get().History).List(cmd.Context())
	if err != nil {
		return err
	}
	if historyLimit > 0 && len(records) > historyLimit {
		records = records[len(records)-historyLimit:]
	}
	return f.History(cmd.OutOrStdout(), records)
}
