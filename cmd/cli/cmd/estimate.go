// Package cmd - estimate command
package cmd

import (
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"fibre-cost/core/output"
	"fibre-cost/core/types"
	"fibre-cost/core/ui"
	ferrors "fibre-cost/internal/errors"
)

// siteFlags binds the site parameters shared by estimate and compare
type siteFlags struct {
	siteRef    string
	distance   float64
	premises   int
	buildType  string
	terrain    string
	traffic    string
	contractor string
	priority   string
	lat        float64
	lon        float64
	regulatory string
	simulation string
}

func (f *siteFlags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.siteRef, "site-ref", "", "caller reference for the site")
	fs.Float64VarP(&f.distance, "distance", "d", 0, "route length in metres")
	fs.IntVarP(&f.premises, "premises", "p", 0, "number of premises passed")
	fs.StringVarP(&f.buildType, "build-type", "b", "", "location type (urban, semi-urban, suburban, rural)")
	fs.StringVar(&f.terrain, "terrain", "", "terrain (normal, rocky, water crossing, difficult, extreme)")
	fs.StringVar(&f.traffic, "traffic", "", "traffic management level (standard, low, medium, high, critical)")
	fs.StringVar(&f.contractor, "contractor", "", "contractor strategy (standard, premium)")
	fs.StringVar(&f.priority, "priority", "", "delivery priority (standard, urgent)")
	fs.Float64Var(&f.lat, "lat", 0, "site latitude for the provider lookup")
	fs.Float64Var(&f.lon, "lon", 0, "site longitude for the provider lookup")
	fs.StringVar(&f.regulatory, "regulatory-cost", "0", "additive regulatory cost")
	fs.StringVar(&f.simulation, "simulation-adjustment", "0", "additive scheduling adjustment")

	_ = cmd.MarkFlagRequired("distance")
	_ = cmd.MarkFlagRequired("premises")
	_ = cmd.MarkFlagRequired("build-type")
}

func (f *siteFlags) params(cmd *cobra.Command) (types.SiteParams, error) {
	p := types.SiteParams{
		SiteRef:    f.siteRef,
		Distance:   f.distance,
		Premises:   f.premises,
		BuildType:  f.buildType,
		Terrain:    f.terrain,
		Traffic:    f.traffic,
		Contractor: f.contractor,
		Priority:   f.priority,
	}

	var err error
	if p.RegulatoryCost, err = decimal.NewFromString(f.regulatory); err != nil {
		return p, ferrors.Wrap(ferrors.TypeInput, "invalid --regulatory-cost", err)
	}
	if p.SimulationAdjustment, err = decimal.NewFromString(f.simulation); err != nil {
		return p, ferrors.Wrap(ferrors.TypeInput, "invalid --simulation-adjustment", err)
	}

	latSet, lonSet := cmd.Flags().Changed("lat"), cmd.Flags().Changed("lon")
	if latSet != lonSet {
		return p, ferrors.Input("--lat and --lon must be given together")
	}
	if latSet {
		lat, lon := f.lat, f.lon
		p.Latitude, p.Longitude = &lat, &lon
	}
	return p, nil
}

var estimateSite siteFlags

// estimateCmd represents the estimate command
var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate the cost of a fibre deployment",
	Long: `Run the full estimation pipeline for one site: deterministic costing,
risk and timeline assessment, optimization, aggregation and validation.

The result is committed to the rolling history and the audit store.

Examples:
  fibre-cost estimate --distance 500 --premises 68 --build-type urban
  fibre-cost estimate -d 1200 -p 40 -b rural --terrain rocky --format json`,
	Args: cobra.NoArgs,
	RunE: runEstimate,
}

func init() {
	estimateSite.bind(estimateCmd)
	rootCmd.AddCommand(estimateCmd)
}

func runEstimate(cmd *cobra.Command, args []string) error {
	params, err := estimateSite.params(cmd)
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

	var spinner *ui.Spinner
	if f.Format() == output.FormatCLI {
		spinner = ui.NewWriter(os.Stderr, noColor).NewSpinner("Estimating deployment cost...")
		spinner.Start()
	}
	result, err := a.Engine.Run(ctx, params)
	if spinner != nil {
		spinner.Stop(err == nil)
	}
	if err != nil {
		return err
	}

	return f.Estimate(cmd.OutOrStdout(), result)
}
