// Package agents adapts the advisory oracle to the estimation pipeline.
//
// Every agent converts an oracle failure into a fixed fallback value, so a
// missing or misbehaving reasoning provider degrades the narrative fields of
// an estimate but never aborts a run. The one exception is ValidateOutput,
// which reports oracle errors separately so the caller can tell an INVALID
// verdict apart from an unreachable validator.
package agents

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"fibre-cost/core/optimization"
	"fibre-cost/core/oracle"
	"fibre-cost/core/types"
	ferrors "fibre-cost/internal/errors"
	"fibre-cost/internal/logging"
)

// Fallback values
const (
	FallbackConfidence       = 0.45
	FallbackAssumption       = "Build method chosen by heuristic fallback."
	FallbackCostValidation   = "System Error"
	FallbackCostOptimization = "Manual Review Required"
	FallbackTopRisk          = "Unknown"
	FallbackMitigation       = "Proceed with caution"
	FallbackStrategyNote     = "Analysis complete. Proceed with standard deployment protocols."
)

// Defaults for keys an oracle judgment leaves out
const (
	defaultConfidence     = 0.5
	defaultCostValidation = "Checked"
	defaultOptimization   = "None"
	defaultTopRisk        = "General Operational Risk"
	defaultMitigation     = "Standard Protocols"
)

// MaxAssumptions caps the oracle assumptions kept per decision
const MaxAssumptions = 6

// Panel is the set of advisory agents sharing one oracle
type Panel struct {
	oracle oracle.Oracle
	log    *zap.Logger
}

// NewPanel creates agents backed by o. A nil oracle is treated as unavailable.
func NewPanel(o oracle.Oracle) *Panel {
	if o == nil {
		o = oracle.Unavailable{}
	}
	return &Panel{
		oracle: o,
		log:    logging.Named("agents"),
	}
}

// BuildDecision is the outcome of the build-method stage
type BuildDecision struct {
	Method         types.BuildMethod
	SurveyRequired bool
	Confidence     float64
	Assumptions    []string

	// Fallback is set when the heuristic replaced the oracle
	Fallback bool
}

// Apply writes the decision into req, appending assumptions not yet recorded
func (d BuildDecision) Apply(req *types.EstimationRequest) {
	req.BuildMethod = d.Method
	req.SurveyRequired = d.SurveyRequired
	req.BuildMethodConfidence = d.Confidence
	for _, a := range d.Assumptions {
		if !slices.Contains(req.Assumptions, a) {
			req.Assumptions = append(req.Assumptions, a)
		}
	}
}

// HeuristicBuildMethod is the deterministic decision used when the oracle fails
func HeuristicBuildMethod(req *types.EstimationRequest) BuildDecision {
	terrain := strings.ToLower(strings.TrimSpace(req.TerrainType))
	location := strings.ToLower(strings.TrimSpace(req.LocationType))

	method := types.BuildHybrid
	if terrain == "rocky" || location == "rural" {
		method = types.BuildUnderground
	}

	return BuildDecision{
		Method:         method,
		SurveyRequired: terrain == "rocky" || terrain == "water crossing",
		Confidence:     FallbackConfidence,
		Assumptions:    []string{FallbackAssumption},
		Fallback:       true,
	}
}

// DecideBuildMethod asks the oracle how to build the site
func (p *Panel) DecideBuildMethod(ctx context.Context, req *types.EstimationRequest) BuildDecision {
	prompt := oracle.Prompt{
		Kind:        oracle.KindBuildMethod,
		Temperature: 0.2,
		Text: fmt.Sprintf(`You are the Build Method Decision Agent for a UK FTTP network build.

Inputs:
- Build Area Type: %s
- Terrain: %s
- Distance to node (m): %s
- Premises: %d
- Traffic management required: %s

Decide the most likely build method and whether a civils survey is required.
Keep assumptions realistic for UK telecom deployments.

Return JSON ONLY:
{
  "build_method": "Underground" | "Overhead" | "Hybrid",
  "survey_required": true | false,
  "assumptions": ["short bullet assumption 1", "assumption 2"],
  "confidence": 0.0
}`,
			req.LocationType, req.TerrainType, formatFloat(req.DistanceMeters), req.PremisesCount, req.TrafficManagement),
	}

	out, err := p.oracle.Judge(ctx, prompt)
	if err == nil {
		var d BuildDecision
		d, err = parseBuildDecision(out)
		if err == nil {
			return d
		}
	}

	p.log.Warn("build method decision fell back to heuristic",
		zap.String("request_id", req.RequestID),
		zap.Error(err))
	return HeuristicBuildMethod(req)
}

func parseBuildDecision(out map[string]any) (BuildDecision, error) {
	d := BuildDecision{
		Method:     types.BuildHybrid,
		Confidence: defaultConfidence,
	}

	if raw, ok := out["build_method"]; ok {
		s, _ := raw.(string)
		d.Method = types.ParseBuildMethod(s)
		if !d.Method.IsValid() {
			return BuildDecision{}, ferrors.Oracle(fmt.Sprintf("unknown build method %q", raw), nil)
		}
	}

	d.SurveyRequired = asBool(out["survey_required"])

	if raw, ok := out["confidence"]; ok {
		c, ok := asFloat(raw)
		if !ok {
			return BuildDecision{}, ferrors.Oracle(fmt.Sprintf("confidence %v is not a number", raw), nil)
		}
		d.Confidence = clamp(c, 0, 1)
	}

	if list, ok := out["assumptions"].([]any); ok {
		for _, item := range list {
			if len(d.Assumptions) == MaxAssumptions {
				break
			}
			s, ok := item.(string)
			if !ok || strings.TrimSpace(s) == "" {
				continue
			}
			d.Assumptions = append(d.Assumptions, strings.TrimSpace(s))
		}
	}
	return d, nil
}

// CostReview is the oracle's commentary on a bill of materials
type CostReview struct {
	Validation   string
	Optimization string
	Fallback     bool
}

// ReviewCost asks the oracle for one optimization over the computed breakdown
func (p *Panel) ReviewCost(ctx context.Context, req *types.EstimationRequest) CostReview {
	operators := make([]string, 0, 3)
	for _, np := range req.NearbyProviders {
		if len(operators) == 3 {
			break
		}
		if np.Name != "" {
			operators = append(operators, np.Name)
		}
	}

	prompt := oracle.Prompt{
		Kind:        oracle.KindCostReview,
		Temperature: 0.3,
		Text: fmt.Sprintf(`You are the Cost Optimization Agent for an India FTTP build.
Provide ONE specific, actionable optimization that could reduce cost or time-to-build.

Constraints:
- Do NOT invent new costs. Use only the BOM values below.
- Keep the suggestion practical for Indian right-of-way and street works.

BOM:
- Civils: %s
- Fibre & materials: %s
- Labour: %s
Total: %s

Context:
- Build method: %s
- Location type: %s
- Terrain: %s
- Traffic mgmt: %s
- Nearby operators: [%s]

Return JSON:
{
  "validation": "Checked",
  "optimization": "One concise recommendation (1-2 sentences)"
}`,
			req.CostBreakdown.Get(types.LineCivils).StringFixed(0),
			req.CostBreakdown.Get(types.LineFibre).StringFixed(0),
			req.CostBreakdown.Get(types.LineLabour).StringFixed(0),
			req.BaseCost.StringFixed(0),
			orDefault(req.BuildMethod.String(), string(types.BuildHybrid)),
			req.LocationType,
			req.TerrainType,
			orDefault(req.TrafficManagement, "Standard"),
			strings.Join(operators, ", ")),
	}

	out, err := p.oracle.Judge(ctx, prompt)
	if err != nil {
		p.log.Warn("cost review unavailable",
			zap.String("request_id", req.RequestID),
			zap.Error(err))
		return CostReview{
			Validation:   FallbackCostValidation,
			Optimization: FallbackCostOptimization,
			Fallback:     true,
		}
	}

	return CostReview{
		Validation:   stringOr(out, "validation", defaultCostValidation),
		Optimization: stringOr(out, "optimization", defaultOptimization),
	}
}

// MergeOptimization combines the deterministic suggestions with the oracle's
// recommendation into the operator-facing optimization text. The suggestions
// always come first; on fallback the review's sentinel takes the narrative slot.
func MergeOptimization(suggestions []types.Suggestion, review CostReview) string {
	hints := optimization.Render(suggestions)
	if strings.TrimSpace(hints) == "" {
		return review.Optimization
	}
	return fmt.Sprintf("Deterministic suggestions:\n%s\n\nLLM suggestion:\n- %s", hints, review.Optimization)
}

// RiskNarrative names the biggest delivery risk and its mitigation
type RiskNarrative struct {
	TopRisk    string
	Mitigation string
	Fallback   bool
}

// AssessRisk asks the oracle to explain the computed risk score
func (p *Panel) AssessRisk(ctx context.Context, req *types.EstimationRequest) RiskNarrative {
	prompt := oracle.Prompt{
		Kind:        oracle.KindRisk,
		Temperature: 0.3,
		Text: fmt.Sprintf(`You are the Risk Agent (Critical Infrastructure).
Assess:
- Location: %s
- Terrain: %s
- Risk Score: %s

Identify the single biggest delivery risk and a mitigation.

Return JSON:
{
    "top_risk": "Specific Risk Name",
    "mitigation": "Specific Action"
}`, req.LocationType, req.TerrainType, formatFloat(req.RiskMultiplier)),
	}

	out, err := p.oracle.Judge(ctx, prompt)
	if err != nil {
		p.log.Warn("risk narrative unavailable",
			zap.String("request_id", req.RequestID),
			zap.Error(err))
		return RiskNarrative{
			TopRisk:    FallbackTopRisk,
			Mitigation: FallbackMitigation,
			Fallback:   true,
		}
	}

	return RiskNarrative{
		TopRisk:    stringOr(out, "top_risk", defaultTopRisk),
		Mitigation: stringOr(out, "mitigation", defaultMitigation),
	}
}

// Verdict is the oracle's judgment of a finished estimate
type Verdict struct {
	Valid bool
	Issue string
}

// ValidationPrompt renders the output-validation question for req
func ValidationPrompt(req *types.EstimationRequest) string {
	return fmt.Sprintf(`Validate this FTTP output.
Return JSON ONLY with keys: status (VALID or INVALID), issue (short explanation if invalid)

Final Cost: %s
Risk Multiplier: %s
Confidence Score: %s
Deployment Days: %d`,
		req.FinalCost.StringFixed(2),
		formatFloat(req.RiskMultiplier),
		formatFloat(req.ConfidenceScore),
		req.Simulation.TotalDays)
}

// ValidateOutput asks the oracle whether the estimate is plausible. Any status
// other than VALID is an invalid verdict; oracle failures are returned as errors.
func (p *Panel) ValidateOutput(ctx context.Context, req *types.EstimationRequest) (Verdict, error) {
	out, err := p.oracle.Judge(ctx, oracle.Prompt{
		Kind:        oracle.KindValidation,
		Text:        ValidationPrompt(req),
		Temperature: 0.2,
	})
	if err != nil {
		return Verdict{}, err
	}

	status, _ := out["status"].(string)
	if strings.EqualFold(strings.TrimSpace(status), "VALID") {
		return Verdict{Valid: true}, nil
	}

	issue, _ := out["issue"].(string)
	return Verdict{Issue: strings.TrimSpace(issue)}, nil
}

// StrategyNote asks the oracle for a short executive note on the estimate
func (p *Panel) StrategyNote(ctx context.Context, req *types.EstimationRequest) string {
	prompt := oracle.Prompt{
		Kind:        oracle.KindStrategy,
		Temperature: 0.5,
		MaxTokens:   150,
		Text: fmt.Sprintf(`You are the Strategic Planner for a UK Telecom Provider.
Goal: Deploy fiber to 5M premises.
Challenge: Reduce manual errors, improve Time to Market (TTM).

Review this build scenario:
- Build Type: %s
- Terrain: %s
- Premises: %d
- Total Cost: %s
- Risk Score: %s
- Est. Time: %d days

Provide a 2-sentence Executive Strategy Note focusing on:
1. Alignment with the 5M goal.
2. Any specific TTM opportunity or risk.

Keep it professional and directive.`,
			req.LocationType,
			req.TerrainType,
			req.PremisesCount,
			req.FinalCost.StringFixed(2),
			formatFloat(req.RiskMultiplier),
			req.Simulation.TotalDays),
	}

	note, err := p.oracle.Narrate(ctx, prompt)
	if err == nil && strings.TrimSpace(note) == "" {
		err = ferrors.Oracle("empty strategy note", nil)
	}
	if err != nil {
		p.log.Warn("strategy note unavailable",
			zap.String("request_id", req.RequestID),
			zap.Error(err))
		return FallbackStrategyNote
	}
	return strings.TrimSpace(note)
}

func stringOr(m map[string]any, key, def string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func asBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, _ := strconv.ParseBool(strings.TrimSpace(b))
		return parsed
	case float64:
		return b != 0
	default:
		return false
	}
}

func asFloat(v any) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case int:
		return float64(f), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
