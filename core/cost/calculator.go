// Package cost computes the base deployment cost of a site.
// The calculator is a pure function of its inputs and the catalog: two calls
// with the same values yield identical results.
package cost

import (
	"strings"

	"github.com/shopspring/decimal"

	"fibre-cost/core/catalog"
	"fibre-cost/core/determinism"
	"fibre-cost/core/types"
)

// ProductivityMetersPerDay is the fixed crew productivity
const ProductivityMetersPerDay = 50

// Trench multipliers by build method
const (
	TrenchMultiplierUnderground = 1.15
	TrenchMultiplierOverhead    = 0.65
	TrenchMultiplierDefault     = 1.00
)

// Input is the subset of a request the calculator reads
type Input struct {
	DistanceMeters    float64
	PremisesCount     int
	LocationType      string
	TerrainType       string
	TrafficManagement string
	BuildMethod       types.BuildMethod
}

// InputFrom extracts calculator input from a request
func InputFrom(req *types.EstimationRequest) Input {
	return Input{
		DistanceMeters:    req.DistanceMeters,
		PremisesCount:     req.PremisesCount,
		LocationType:      req.LocationType,
		TerrainType:       req.TerrainType,
		TrafficManagement: req.TrafficManagement,
		BuildMethod:       req.BuildMethod,
	}
}

// Result is the cost computation output
type Result struct {
	FibreCost        decimal.Decimal
	TrenchCost       decimal.Decimal
	LabourCost       decimal.Decimal
	EquipmentCost    decimal.Decimal
	BaseCost         decimal.Decimal
	CostPerPremise   decimal.Decimal
	LabourDays       decimal.Decimal
	UpliftMultiplier float64
	TrenchMultiplier float64
	CatalogVersion   string
}

// Breakdown returns the four BOM lines in their fixed order
func (r Result) Breakdown() types.Breakdown {
	return types.Breakdown{
		{Name: types.LineFibre, Amount: r.FibreCost},
		{Name: types.LineCivils, Amount: r.TrenchCost},
		{Name: types.LineLabour, Amount: r.LabourCost},
		{Name: types.LineEquipment, Amount: r.EquipmentCost},
	}
}

// TrenchMultiplier returns the civils multiplier for a build method
func TrenchMultiplier(m types.BuildMethod) float64 {
	switch m {
	case types.BuildUnderground:
		return TrenchMultiplierUnderground
	case types.BuildOverhead:
		return TrenchMultiplierOverhead
	default:
		return TrenchMultiplierDefault
	}
}

// UpliftKey normalizes a classification for uplift lookup
func UpliftKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
}

// Compute prices a site against the catalog
func Compute(in Input, c *catalog.Catalog) Result {
	fibreRate := determinism.Dec(c.UnitCost(catalog.KeyFibrePerMeter, catalog.DefaultFibrePerMeter))
	trenchRate := determinism.Dec(c.UnitCost(catalog.KeyTrenchPerMeter, catalog.DefaultTrenchPerMeter))
	labourRate := determinism.Dec(c.UnitCost(catalog.KeyLabourPerDay, catalog.DefaultLabourPerDay))
	equipmentRate := determinism.Dec(c.UnitCost(catalog.KeyEquipmentPerPremise, catalog.DefaultEquipmentPerPremise))

	uplift := determinism.Dec(c.Uplift(catalog.UpliftLocation, UpliftKey(in.LocationType), catalog.DefaultUplift)).
		Mul(determinism.Dec(c.Uplift(catalog.UpliftTerrain, UpliftKey(in.TerrainType), catalog.DefaultUplift))).
		Mul(determinism.Dec(c.Uplift(catalog.UpliftTraffic, UpliftKey(in.TrafficManagement), catalog.DefaultUplift)))

	trenchMultiplier := TrenchMultiplier(in.BuildMethod)
	distance := determinism.Dec(in.DistanceMeters)

	fibreCost := distance.Mul(fibreRate).Mul(uplift)
	trenchCost := distance.Mul(trenchRate).Mul(determinism.Dec(trenchMultiplier)).Mul(uplift)

	labourDays := distance.Div(decimal.NewFromInt(ProductivityMetersPerDay))
	labourCost := labourDays.Mul(labourRate).Mul(uplift)

	// Equipment sourcing is not location-sensitive: no uplift.
	equipmentCost := decimal.NewFromInt(int64(in.PremisesCount)).Mul(equipmentRate)

	base := fibreCost.Add(trenchCost).Add(labourCost).Add(equipmentCost)

	perPremise := decimal.Zero
	if in.PremisesCount > 0 {
		perPremise = base.Div(decimal.NewFromInt(int64(in.PremisesCount)))
	}

	return Result{
		FibreCost:        fibreCost,
		TrenchCost:       trenchCost,
		LabourCost:       labourCost,
		EquipmentCost:    equipmentCost,
		BaseCost:         base,
		CostPerPremise:   perPremise,
		LabourDays:       labourDays,
		UpliftMultiplier: determinism.Float(uplift),
		TrenchMultiplier: trenchMultiplier,
		CatalogVersion:   c.VersionOrUnknown(),
	}
}

// Apply computes the cost of req and writes the results into it
func Apply(req *types.EstimationRequest, c *catalog.Catalog) Result {
	r := Compute(InputFrom(req), c)
	req.CostBreakdown = r.Breakdown()
	req.BaseCost = r.BaseCost
	req.CostPerPremise = r.CostPerPremise
	req.LabourDays = r.LabourDays
	req.UpliftMultiplier = r.UpliftMultiplier
	req.CatalogVersion = r.CatalogVersion
	return r
}
