// Package optimization is a deterministic rule engine producing ranked,
// explainable savings suggestions from a completed cost breakdown.
//
// Rationales only restate values already present in the breakdown or its
// context; no rule fabricates a cost figure.
package optimization

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"fibre-cost/core/determinism"
	"fibre-cost/core/types"
)

// MaxSuggestions caps the ranked output
const MaxSuggestions = 3

// SharingRadiusKm is the distance under which a provider counts as nearby
const SharingRadiusKm = 2.0

// Context is everything the rules may read
type Context struct {
	Breakdown         types.Breakdown
	BaseCost          decimal.Decimal
	BuildMethod       types.BuildMethod
	TrafficManagement string
	TerrainType       string
	LocationType      string
	NearbyProviders   []types.NearbyProvider
}

// ContextFrom builds rule context from a request
func ContextFrom(req *types.EstimationRequest) Context {
	return Context{
		Breakdown:         req.CostBreakdown,
		BaseCost:          req.BaseCost,
		BuildMethod:       req.BuildMethod,
		TrafficManagement: req.TrafficManagement,
		TerrainType:       req.TerrainType,
		LocationType:      req.LocationType,
		NearbyProviders:   req.NearbyProviders,
	}
}

// facts is the normalized view rules evaluate against
type facts struct {
	trenchShare float64
	labourShare float64
	fibreShare  float64
	method      string
	traffic     string
	terrain     string
	location    string
	nearby      []types.NearbyProvider
}

// Rule is a single heuristic
type Rule struct {
	Name    string
	Title   string
	Savings float64
	eval    func(f facts) (rationale string, ok bool)
}

// Rules returns the rule set in declaration order
func Rules() []Rule {
	return []Rule{
		{
			Name:    "civils_method",
			Title:   "Reduce civils via micro-trenching / HDD selection",
			Savings: 8.0,
			eval: func(f facts) (string, bool) {
				return "Civils is the dominant cost driver. Consider micro-trenching in suitable corridors, or HDD for crossings to reduce open-cut length.",
					f.trenchShare >= 0.45
			},
		},
		{
			Name:    "crew_plan",
			Title:   "Optimize crew plan and work packaging",
			Savings: 4.0,
			eval: func(f facts) (string, bool) {
				return "Labour share is elevated. Use clustered work orders, reduce travel/idle time, and schedule night work only where traffic management is critical.",
					f.labourShare >= 0.25
			},
		},
		{
			Name:    "aerial_routing",
			Title:   "Consider aerial sections where feasible",
			Savings: 3.5,
			eval: func(f facts) (string, bool) {
				return "Material-heavy builds can benefit from aerial spans on existing pole routes where approvals allow.",
					f.fibreShare >= 0.18 && (f.method == "overhead" || f.method == "hybrid")
			},
		},
		{
			Name:    "infrastructure_sharing",
			Title:   "Evaluate infrastructure sharing",
			Savings: 6.0,
			eval: func(f facts) (string, bool) {
				var names []string
				for _, p := range f.nearby {
					if p.DistanceKm <= SharingRadiusKm && p.Name != "" {
						names = append(names, p.Name)
					}
				}
				if len(names) == 0 {
					return "", false
				}
				return fmt.Sprintf("Nearby operators detected (%s). If commercial/regulated sharing is available, reuse ducts/ROW to reduce civils and accelerate delivery.",
					strings.Join(determinism.UniqueSorted(names), ", ")), true
			},
		},
		{
			Name:    "traffic_exposure",
			Title:   "Minimize traffic management exposure",
			Savings: 2.5,
			eval: func(f facts) (string, bool) {
				return "Traffic management drives both cost and schedule. Re-plan to off-peak windows and consolidate permits to reduce repeated setups.",
					f.traffic == "high" || f.traffic == "critical"
			},
		},
		{
			Name:    "route_selection",
			Title:   "Route selection to avoid hard terrain",
			Savings: 3.0,
			eval: func(f facts) (string, bool) {
				return "In difficult rural terrain, small route changes can materially reduce civils complexity. Prioritize existing corridors and utility easements.",
					(f.terrain == "difficult" || f.terrain == "extreme") && f.location == "rural"
			},
		},
	}
}

// Suggest evaluates every rule and returns at most MaxSuggestions, ranked by
// descending estimated savings. Equal savings keep declaration order.
// A non-positive base cost yields no suggestions.
func Suggest(ctx Context) ([]types.Suggestion, error) {
	if !ctx.BaseCost.IsPositive() {
		return []types.Suggestion{}, nil
	}
	if len(ctx.Breakdown) == 0 {
		return nil, fmt.Errorf("cost breakdown is empty")
	}
	for _, line := range ctx.Breakdown {
		if line.Amount.IsNegative() {
			return nil, fmt.Errorf("cost line %q is negative", line.Name)
		}
	}

	f := facts{
		trenchShare: share(ctx.Breakdown.Get(types.LineCivils), ctx.BaseCost),
		labourShare: share(ctx.Breakdown.Get(types.LineLabour), ctx.BaseCost),
		fibreShare:  share(ctx.Breakdown.Get(types.LineFibre), ctx.BaseCost),
		method:      lowerOr(string(ctx.BuildMethod), "hybrid"),
		traffic:     lowerOr(ctx.TrafficManagement, "standard"),
		terrain:     lowerOr(ctx.TerrainType, "normal"),
		location:    lowerOr(ctx.LocationType, "urban"),
		nearby:      ctx.NearbyProviders,
	}

	suggestions := make([]types.Suggestion, 0, MaxSuggestions)
	for _, rule := range Rules() {
		rationale, ok := rule.eval(f)
		if !ok {
			continue
		}
		suggestions = append(suggestions, types.Suggestion{
			Title:               rule.Title,
			Rationale:           rationale,
			EstimatedSavingsPct: math.Round(rule.Savings*10) / 10,
		})
	}

	determinism.SortSlice(suggestions, func(a, b types.Suggestion) bool {
		return a.EstimatedSavingsPct > b.EstimatedSavingsPct
	})
	if len(suggestions) > MaxSuggestions {
		suggestions = suggestions[:MaxSuggestions]
	}
	return suggestions, nil
}

// Render formats suggestions as "- title: rationale (est. N%)" lines
func Render(suggestions []types.Suggestion) string {
	lines := make([]string, len(suggestions))
	for i, s := range suggestions {
		lines[i] = fmt.Sprintf("- %s: %s (est. %.1f%%)", s.Title, s.Rationale, s.EstimatedSavingsPct)
	}
	return strings.Join(lines, "\n")
}

func share(part, base decimal.Decimal) float64 {
	return determinism.Float(part.Div(base))
}

func lowerOr(s, def string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return def
	}
	return s
}
