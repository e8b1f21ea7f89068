// Package cmd - compare command
package cmd

import (
	"github.com/spf13/cobra"

	"fibre-cost/core/engine"
	"fibre-cost/core/output"
)

var compareSite siteFlags

// compareCmd compares build methods for one site
var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare build methods and recommend one",
	Long: `Estimate the same site once per build method (underground, overhead,
hybrid) and recommend the cheapest method within the risk threshold.

Comparisons are previews: nothing is written to history or the audit store.

Examples:
  fibre-cost compare --distance 500 --premises 68 --build-type urban`,
	Args: cobra.NoArgs,
	RunE: runCompare,
}

func init() {
	compareSite.bind(compareCmd)
	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	params, err := compareSite.params(cmd)
	if err != nil {
		return err
	}
	f, err := formatter()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	rows, err := a.Engine.CompareScenarios(ctx, params)
	if err != nil {
		return err
	}

	report := output.ScenarioReport{Rows: rows}
	if best, ok := engine.Recommend(rows, a.Engine.Config().GovernanceRiskThreshold); ok {
		report.Recommended = &best
	}
	return f.Scenarios(cmd.OutOrStdout(), report)
}
