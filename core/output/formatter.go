// Package output provides output formatting.
// This package produces human and machine-readable outputs.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"fibre-cost/core/types"
	"fibre-cost/core/ui"
	ferrors "fibre-cost/internal/errors"
)

// Format represents output format type
type Format string

const (
	// FormatCLI is a human-readable CLI table
	FormatCLI Format = "cli"

	// FormatJSON is machine-readable JSON
	FormatJSON Format = "json"
)

// ScenarioReport is a build-method comparison with its recommendation
type ScenarioReport struct {
	Rows        []types.ScenarioRow `json:"scenarios"`
	Recommended *types.ScenarioRow  `json:"recommended,omitempty"`
}

// Formatter produces output in a specific format
type Formatter interface {
	// Format returns the format type
	Format() Format

	// Estimate renders one completed run
	Estimate(w io.Writer, req *types.EstimationRequest) error

	// Scenarios renders a build-method comparison
	Scenarios(w io.Writer, report ScenarioReport) error

	// History renders the rolling window of completed runs
	History(w io.Writer, records []types.HistoricalRecord) error

	// AuditList renders audit records
	AuditList(w io.Writer, records []*types.AuditRecord) error

	// AuditRecord renders a single audit record
	AuditRecord(w io.Writer, rec *types.AuditRecord) error

	// Analytics renders an audit summary
	Analytics(w io.Writer, a *types.AuditAnalytics) error
}

// New returns the formatter for a format name
func New(format string, noColor bool) (Formatter, error) {
	switch Format(strings.ToLower(format)) {
	case FormatCLI, "":
		return &CLIFormatter{NoColor: noColor}, nil
	case FormatJSON:
		return JSONFormatter{}, nil
	default:
		return nil, ferrors.Input(fmt.Sprintf("unknown output format %q (cli, json)", format))
	}
}

// JSONFormatter writes indented JSON
type JSONFormatter struct{}

func (JSONFormatter) Format() Format { return FormatJSON }

func (JSONFormatter) write(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (f JSONFormatter) Estimate(w io.Writer, req *types.EstimationRequest) error {
	return f.write(w, req)
}

func (f JSONFormatter) Scenarios(w io.Writer, report ScenarioReport) error {
	return f.write(w, report)
}

func (f JSONFormatter) History(w io.Writer, records []types.HistoricalRecord) error {
	if records == nil {
		records = []types.HistoricalRecord{}
	}
	return f.write(w, records)
}

func (f JSONFormatter) AuditList(w io.Writer, records []*types.AuditRecord) error {
	if records == nil {
		records = []*types.AuditRecord{}
	}
	return f.write(w, records)
}

func (f JSONFormatter) AuditRecord(w io.Writer, rec *types.AuditRecord) error {
	return f.write(w, rec)
}

func (f JSONFormatter) Analytics(w io.Writer, a *types.AuditAnalytics) error {
	return f.write(w, a)
}

// CLIFormatter renders tables for a terminal
type CLIFormatter struct {
	NoColor bool
}

func (f *CLIFormatter) Format() Format { return FormatCLI }

// Money renders an amount with two decimals and thousands separators
func Money(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + "." + frac
}

func (f *CLIFormatter) Estimate(w io.Writer, req *types.EstimationRequest) error {
	out := ui.NewWriter(w, f.NoColor)

	summary := out.NewEstimateSummary()
	summary.FinalCost = Money(req.FinalCost)
	summary.BaseCost = Money(req.BaseCost)
	summary.Risk = req.RiskMultiplier
	summary.Confidence = req.ConfidenceScore
	summary.Days = req.Simulation.TotalDays
	summary.Anomaly = req.AnomalyFlag
	summary.Validation = req.Validation.String()
	summary.Render()

	out.Header("Site")
	out.KeyValue("Request", req.RequestID)
	if req.SiteRef != "" {
		out.KeyValue("Site ref", req.SiteRef)
	}
	out.KeyValue("Distance (m)", fmt.Sprintf("%g", req.DistanceMeters))
	out.KeyValue("Premises", fmt.Sprintf("%d", req.PremisesCount))
	out.KeyValue("Location", req.LocationType)
	out.KeyValue("Terrain", req.TerrainType)
	out.KeyValue("Traffic", req.TrafficManagement)
	out.KeyValue("Build method", fmt.Sprintf("%s (%.0f%% confidence)", req.BuildMethod, req.BuildMethodConfidence*100))
	if req.SurveyRequired {
		out.Warning("Site survey required")
	}

	out.Header("Cost Breakdown")
	table := out.NewTable("Line", "Amount")
	for _, line := range req.CostBreakdown {
		table.AddRow(line.Name, Money(line.Amount))
	}
	table.AddRow("Base cost", Money(req.BaseCost))
	if !req.RegulatoryCost.IsZero() {
		table.AddRow("Regulatory", Money(req.RegulatoryCost))
	}
	if !req.SimulationAdjustment.IsZero() {
		table.AddRow("Simulation adjustment", Money(req.SimulationAdjustment))
	}
	table.AddRow("Cost per premise", Money(req.CostPerPremise))
	table.Render()
	out.Println("")
	out.KeyValue("Catalog", req.CatalogVersion)
	out.KeyValue("Uplift", fmt.Sprintf("%.2fx", req.UpliftMultiplier))
	out.KeyValue("Labour days", req.LabourDays.StringFixed(1))

	out.Header("Plan")
	out.KeyValue("Labour teams", fmt.Sprintf("%d", req.Simulation.LabourTeams))
	out.KeyValue("Equipment units", fmt.Sprintf("%d", req.Simulation.EquipmentUnits))
	out.KeyValue("Top risk", req.TopRisk)
	out.KeyValue("Mitigation", req.RiskMitigation)
	out.KeyValue("Cost review", req.CostValidation)

	if len(req.Assumptions) > 0 {
		out.SubHeader("Assumptions")
		for _, a := range req.Assumptions {
			out.Println("  - %s", a)
		}
	}
	if req.CostOptimization != "" {
		out.SubHeader("Optimization")
		for _, line := range strings.Split(req.CostOptimization, "\n") {
			out.Println("  %s", line)
		}
	}
	if len(req.NearbyProviders) > 0 {
		out.SubHeader("Nearby operators")
		for _, p := range req.NearbyProviders {
			out.Println("  - %s (%.2f km)", p.Name, p.DistanceKm)
		}
	}

	out.Header("Strategy")
	out.Println("%s", req.StrategyNote)
	return nil
}

func (f *CLIFormatter) Scenarios(w io.Writer, report ScenarioReport) error {
	out := ui.NewWriter(w, f.NoColor)
	out.Header("Build Method Comparison")

	table := out.NewTable("Method", "Base", "Final", "Risk", "Confidence", "Days", "Note")
	for _, row := range report.Rows {
		note := ""
		if report.Recommended != nil && row.Method == report.Recommended.Method {
			note = "recommended"
		}
		if row.Error != "" {
			note = ui.Truncate("degraded: "+row.Error, 48)
		}
		table.AddRow(
			row.Method.String(),
			Money(row.BaseCost),
			Money(row.FinalCost),
			fmt.Sprintf("%.2f", row.RiskMultiplier),
			fmt.Sprintf("%.0f%%", row.ConfidenceScore*100),
			fmt.Sprintf("%d", row.TotalDays),
			note,
		)
	}
	table.Render()

	out.Println("")
	if report.Recommended == nil {
		out.Warning("No scenario could be recommended")
		return nil
	}
	out.Success("Recommended: %s at %s", report.Recommended.Method, Money(report.Recommended.FinalCost))
	return nil
}

func (f *CLIFormatter) History(w io.Writer, records []types.HistoricalRecord) error {
	out := ui.NewWriter(w, f.NoColor)
	out.Header(fmt.Sprintf("History (%d runs)", len(records)))
	if len(records) == 0 {
		out.Info("No runs recorded yet")
		return nil
	}

	table := out.NewTable("Timestamp", "Request", "Distance", "Premises", "Cost", "Risk", "Level")
	for _, rec := range records {
		table.AddRow(
			rec.Timestamp.Format("2006-01-02 15:04:05"),
			ui.Truncate(rec.RequestID, 36),
			fmt.Sprintf("%g", rec.Distance),
			fmt.Sprintf("%d", rec.Premises),
			Money(rec.Cost),
			fmt.Sprintf("%.2f", rec.Risk),
			string(rec.RiskLevel),
		)
	}
	table.Render()
	return nil
}

func (f *CLIFormatter) AuditList(w io.Writer, records []*types.AuditRecord) error {
	out := ui.NewWriter(w, f.NoColor)
	out.Header(fmt.Sprintf("Audit Records (%d)", len(records)))
	if len(records) == 0 {
		out.Info("No audit records")
		return nil
	}

	table := out.NewTable("Request", "Site", "Status", "Final Cost", "Created")
	for _, rec := range records {
		final := "-"
		if rec.Result != nil {
			final = Money(rec.Result.FinalCost)
		}
		table.AddRow(
			rec.RequestID,
			ui.Truncate(rec.SiteRef, 24),
			string(rec.Status),
			final,
			rec.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	table.Render()
	return nil
}

func (f *CLIFormatter) AuditRecord(w io.Writer, rec *types.AuditRecord) error {
	out := ui.NewWriter(w, f.NoColor)
	out.Header("Audit Record " + rec.RequestID)
	out.KeyValue("Status", string(rec.Status))
	out.KeyValue("Site ref", rec.SiteRef)
	out.KeyValue("Created", rec.CreatedAt.Format("2006-01-02 15:04:05"))
	out.KeyValue("Updated", rec.UpdatedAt.Format("2006-01-02 15:04:05"))
	if rec.ReviewedAt != nil {
		out.KeyValue("Reviewed", fmt.Sprintf("%s by %s", rec.ReviewedAt.Format("2006-01-02 15:04:05"), rec.Reviewer))
	}
	if rec.ApprovedAt != nil {
		out.KeyValue("Approved", fmt.Sprintf("%s by %s", rec.ApprovedAt.Format("2006-01-02 15:04:05"), rec.ApprovedBy))
	}
	if rec.Notes != "" {
		out.SubHeader("Notes")
		for _, line := range strings.Split(rec.Notes, "\n") {
			out.Println("  %s", line)
		}
	}
	if rec.Result != nil {
		return f.Estimate(w, rec.Result)
	}
	return nil
}

func (f *CLIFormatter) Analytics(w io.Writer, a *types.AuditAnalytics) error {
	out := ui.NewWriter(w, f.NoColor)
	out.Header(fmt.Sprintf("Audit Analytics (last %d days)", a.WindowDays))
	out.KeyValue("Total requests", fmt.Sprintf("%d", a.Total))

	table := out.NewTable("Status", "Count")
	for _, status := range []types.AuditStatus{
		types.AuditDraft, types.AuditPendingReview, types.AuditReviewed, types.AuditApproved, types.AuditRejected,
	} {
		table.AddRow(string(status), fmt.Sprintf("%d", a.ByStatus[status]))
	}
	table.Render()

	out.Println("")
	if a.AvgApprovalTurnaround == nil {
		out.KeyValue("Avg approval time", "n/a")
	} else {
		out.KeyValue("Avg approval time", fmt.Sprintf("%.1f hours", *a.AvgApprovalTurnaround))
	}
	return nil
}
