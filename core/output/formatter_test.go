package output

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fibre-cost/core/types"
)

func TestMoney(t *testing.T) {
	tests := []struct {
		in   decimal.Decimal
		want string
	}{
		{decimal.Zero, "0.00"},
		{decimal.NewFromInt(999), "999.00"},
		{decimal.NewFromInt(204750), "204,750.00"},
		{decimal.NewFromFloat(1234567.891), "1,234,567.89"},
		{decimal.NewFromInt(-1500), "-1,500.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Money(tt.in))
	}
}

func TestNew(t *testing.T) {
	f, err := New("JSON", false)
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f.Format())

	f, err = New("", true)
	require.NoError(t, err)
	assert.Equal(t, FormatCLI, f.Format())

	_, err = New("html", false)
	assert.Error(t, err)
}

func sampleRequest() *types.EstimationRequest {
	return &types.EstimationRequest{
		RequestID:       "req-1",
		SiteRef:         "SITE-1",
		DistanceMeters:  500,
		PremisesCount:   68,
		LocationType:    "urban",
		BuildMethod:     types.BuildHybrid,
		CostBreakdown:   types.Breakdown{{Name: types.LineCivils, Amount: decimal.NewFromInt(12500)}},
		BaseCost:        decimal.NewFromInt(157500),
		FinalCost:       decimal.NewFromInt(204750),
		RiskMultiplier:  1.3,
		ConfidenceScore: 0.7,
		AnomalyFlag:     true,
		Validation:      types.Validation{Status: types.ValidationValid},
		Assumptions:     []string{"Ducts available."},
		StrategyNote:    "Proceed.",
	}
}

func TestCLIEstimate(t *testing.T) {
	var buf bytes.Buffer
	f := &CLIFormatter{NoColor: true}
	require.NoError(t, f.Estimate(&buf, sampleRequest()))

	out := buf.String()
	assert.Contains(t, out, "Final Cost: 204,750.00")
	assert.Contains(t, out, "Civils / trenching")
	assert.Contains(t, out, "12,500.00")
	assert.Contains(t, out, "Validation: VALID")
	assert.Contains(t, out, "anomaly threshold")
	assert.Contains(t, out, "- Ducts available.")
	assert.Contains(t, out, "Proceed.")
	assert.NotContains(t, out, "\033[")
}

func TestCLIScenarios(t *testing.T) {
	rows := []types.ScenarioRow{
		{Method: types.BuildUnderground, FinalCost: decimal.NewFromInt(207187), RiskMultiplier: 1.3},
		{Method: types.BuildOverhead, FinalCost: decimal.NewFromInt(199062), RiskMultiplier: 1.3},
		{Method: types.BuildHybrid, RiskMultiplier: 1.0, Error: "catalog missing"},
	}

	var buf bytes.Buffer
	f := &CLIFormatter{NoColor: true}
	require.NoError(t, f.Scenarios(&buf, ScenarioReport{Rows: rows, Recommended: &rows[1]}))

	out := buf.String()
	assert.Contains(t, out, "recommended")
	assert.Contains(t, out, "degraded: catalog missing")
	assert.Contains(t, out, "Recommended: Overhead at 199,062.00")

	buf.Reset()
	require.NoError(t, f.Scenarios(&buf, ScenarioReport{Rows: rows}))
	assert.Contains(t, buf.String(), "No scenario could be recommended")
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := JSONFormatter{}

	require.NoError(t, f.History(&buf, nil))
	assert.JSONEq(t, "[]", buf.String())

	buf.Reset()
	require.NoError(t, f.Estimate(&buf, sampleRequest()))
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "req-1", decoded["request_id"])
	assert.Equal(t, "204750", decoded["final_cost"])
}

func TestCLIAnalytics(t *testing.T) {
	avg := 3.0
	var buf bytes.Buffer
	f := &CLIFormatter{NoColor: true}
	require.NoError(t, f.Analytics(&buf, &types.AuditAnalytics{
		WindowDays:            30,
		Total:                 3,
		ByStatus:              map[types.AuditStatus]int64{types.AuditApproved: 2, types.AuditDraft: 1},
		AvgApprovalTurnaround: &avg,
	}))
	assert.Contains(t, buf.String(), "last 30 days")
	assert.Contains(t, buf.String(), "3.0 hours")

	buf.Reset()
	require.NoError(t, f.Analytics(&buf, &types.AuditAnalytics{WindowDays: 30}))
	assert.Contains(t, buf.String(), "n/a")
}

func TestCLIAuditRecord(t *testing.T) {
	approved := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := &types.AuditRecord{
		RequestID:  "req-1",
		Status:     types.AuditApproved,
		ApprovedBy: "bob",
		ApprovedAt: &approved,
		Notes:      "first\nsecond",
		Result:     sampleRequest(),
	}

	var buf bytes.Buffer
	f := &CLIFormatter{NoColor: true}
	require.NoError(t, f.AuditRecord(&buf, rec))
	out := buf.String()
	assert.Contains(t, out, "Audit Record req-1")
	assert.Contains(t, out, "2026-03-01 12:00:00 by bob")
	assert.Contains(t, out, "  second")
	assert.Contains(t, out, "Final Cost: 204,750.00")
}
