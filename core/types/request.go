// Package types - Estimation request working state
package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Breakdown line names, in insertion order
const (
	LineFibre     = "Fibre materials"
	LineCivils    = "Civils / trenching"
	LineLabour    = "Labour"
	LineEquipment = "Equipment / CPE"
)

// CostLine is a single bill-of-materials line
type CostLine struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// Breakdown is an insertion-ordered list of BOM lines
type Breakdown []CostLine

// Get returns the amount for a named line, zero if absent
func (b Breakdown) Get(name string) decimal.Decimal {
	for _, line := range b {
		if line.Name == name {
			return line.Amount
		}
	}
	return decimal.Zero
}

// Total sums every line
func (b Breakdown) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range b {
		total = total.Add(line.Amount)
	}
	return total
}

// Suggestion is a ranked, explainable savings idea derived from a breakdown
type Suggestion struct {
	Title               string  `json:"title"`
	Rationale           string  `json:"rationale"`
	EstimatedSavingsPct float64 `json:"estimated_savings_pct"`
}

// SimulationResult is the resource plan for a deployment
type SimulationResult struct {
	LabourTeams    int `json:"labour_teams"`
	EquipmentUnits int `json:"equipment_units"`
	TotalDays      int `json:"total_days"`
}

// ValidationStatus is the output-validation verdict
type ValidationStatus string

const (
	ValidationPending           ValidationStatus = "pending"
	ValidationValid             ValidationStatus = "valid"
	ValidationInvalid           ValidationStatus = "invalid"
	ValidationErrorAssumedValid ValidationStatus = "error_assumed_valid"
)

// Validation carries the verdict plus the issue or error text
type Validation struct {
	Status ValidationStatus `json:"status"`
	Detail string           `json:"detail,omitempty"`
}

// Passed reports whether the run may proceed without a further retry
func (v Validation) Passed() bool {
	return v.Status == ValidationValid || v.Status == ValidationErrorAssumedValid
}

// String renders the verdict for operators
func (v Validation) String() string {
	switch v.Status {
	case ValidationValid:
		return "VALID"
	case ValidationInvalid:
		issue := v.Detail
		if issue == "" {
			issue = "N/A"
		}
		return "Invalid: " + issue
	case ValidationErrorAssumedValid:
		return fmt.Sprintf("Oracle error: %s - assuming valid", v.Detail)
	default:
		return "PENDING"
	}
}

// EstimationRequest is the working state threaded through one pipeline run
type EstimationRequest struct {
	// RequestID is generated once per run and stable across retries
	RequestID string `json:"request_id"`

	// SiteRef is the caller's reference for the site
	SiteRef string `json:"site_ref,omitempty"`

	// Normalized inputs
	DistanceMeters     float64 `json:"distance_meters"`
	PremisesCount      int     `json:"premises_count"`
	LocationType       string  `json:"location_type"`
	TerrainType        string  `json:"terrain_type"`
	TrafficManagement  string  `json:"traffic_management"`
	ContractorStrategy string  `json:"contractor_strategy"`
	Priority           string  `json:"priority"`

	Latitude  *float64 `json:"lat,omitempty"`
	Longitude *float64 `json:"lon,omitempty"`

	// Build method decision
	BuildMethod           BuildMethod `json:"build_method"`
	SurveyRequired        bool        `json:"survey_required"`
	BuildMethodConfidence float64     `json:"build_method_confidence"`
	Assumptions           []string    `json:"assumptions"`

	// Cost computation
	CostBreakdown    Breakdown       `json:"cost_breakdown"`
	BaseCost         decimal.Decimal `json:"base_cost"`
	CostPerPremise   decimal.Decimal `json:"cost_per_premise"`
	LabourDays       decimal.Decimal `json:"labour_days"`
	UpliftMultiplier float64         `json:"uplift_multiplier"`
	CatalogVersion   string          `json:"catalog_version"`

	// Optimization and cost review
	OptimizationSuggestions []Suggestion `json:"optimization_suggestions"`
	CostValidation          string       `json:"cost_validation"`
	CostOptimization        string       `json:"cost_optimization"`

	// Risk
	RiskMultiplier float64 `json:"risk_multiplier"`
	TopRisk        string  `json:"top_risk"`
	RiskMitigation string  `json:"risk_mitigation"`

	// Simulation
	Simulation SimulationResult `json:"simulation"`

	// Aggregation
	RegulatoryCost       decimal.Decimal `json:"regulatory_cost"`
	SimulationAdjustment decimal.Decimal `json:"simulation_adjustment"`
	FinalCost            decimal.Decimal `json:"final_cost"`
	ConfidenceScore      float64         `json:"confidence_score"`
	AnomalyFlag          bool            `json:"anomaly_flag"`

	// Output validation
	Validation Validation `json:"validation"`
	Attempts   int        `json:"attempts"`

	StrategyNote string `json:"strategy_note"`

	// NearbyProviders is context for the optimization heuristics
	NearbyProviders []NearbyProvider `json:"nearby_providers,omitempty"`
}

// Clone returns a deep, fully independent copy
func (r *EstimationRequest) Clone() *EstimationRequest {
	if r == nil {
		return nil
	}
	c := *r
	if r.Latitude != nil {
		lat := *r.Latitude
		c.Latitude = &lat
	}
	if r.Longitude != nil {
		lon := *r.Longitude
		c.Longitude = &lon
	}
	c.Assumptions = append([]string(nil), r.Assumptions...)
	c.CostBreakdown = append(Breakdown(nil), r.CostBreakdown...)
	c.OptimizationSuggestions = append([]Suggestion(nil), r.OptimizationSuggestions...)
	c.NearbyProviders = append([]NearbyProvider(nil), r.NearbyProviders...)
	return &c
}

// ScenarioRow is one line of a build-method comparison
type ScenarioRow struct {
	Method          BuildMethod     `json:"method"`
	BaseCost        decimal.Decimal `json:"base_cost"`
	FinalCost       decimal.Decimal `json:"final_cost"`
	RiskMultiplier  float64         `json:"risk_multiplier"`
	ConfidenceScore float64         `json:"confidence_score"`
	TotalDays       int             `json:"total_days"`

	// Error is set when the row fell back to a partially computed state
	Error string `json:"error,omitempty"`
}
