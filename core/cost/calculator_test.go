package cost

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fibre-cost/core/catalog"
	"fibre-cost/core/types"
)

func referenceInput(method types.BuildMethod) Input {
	return Input{
		DistanceMeters: 500,
		PremisesCount:  68,
		LocationType:   "urban",
		TerrainType:    "normal",
		BuildMethod:    method,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeHybridReferenceSite(t *testing.T) {
	r := Compute(referenceInput(types.BuildHybrid), &catalog.Catalog{})

	assert.Equal(t, 1.00, r.TrenchMultiplier)
	assert.True(t, r.FibreCost.Equal(dec("4000")), "fibre %s", r.FibreCost)
	assert.True(t, r.TrenchCost.Equal(dec("12500")), "trench %s", r.TrenchCost)
	assert.True(t, r.LabourDays.Equal(dec("10")), "labour days %s", r.LabourDays)
	assert.True(t, r.LabourCost.Equal(dec("5000")), "labour %s", r.LabourCost)
	assert.True(t, r.EquipmentCost.Equal(dec("136000")), "equipment %s", r.EquipmentCost)
	assert.True(t, r.BaseCost.Equal(dec("157500")), "base %s", r.BaseCost)
	assert.Equal(t, catalog.UnknownVersion, r.CatalogVersion)
	assert.Equal(t, 1.0, r.UpliftMultiplier)
}

func TestComputeUndergroundReferenceSite(t *testing.T) {
	r := Compute(referenceInput(types.BuildUnderground), catalog.Default())

	assert.Equal(t, 1.15, r.TrenchMultiplier)
	assert.True(t, r.TrenchCost.Equal(dec("14375")), "trench %s", r.TrenchCost)
	assert.True(t, r.BaseCost.Equal(dec("159375")), "base %s", r.BaseCost)
	assert.Equal(t, "default-1", r.CatalogVersion)
}

func TestTrenchMultiplier(t *testing.T) {
	tests := []struct {
		method types.BuildMethod
		want   float64
	}{
		{types.BuildUnderground, 1.15},
		{types.BuildOverhead, 0.65},
		{types.BuildHybrid, 1.00},
		{types.BuildUndecided, 1.00},
	}
	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			assert.Equal(t, tt.want, TrenchMultiplier(tt.method))
		})
	}
}

func TestBreakdownSumsToBaseCost(t *testing.T) {
	c := &catalog.Catalog{
		Version: "uplifted",
		UnitCosts: map[string]float64{
			catalog.KeyFibrePerMeter:  8.37,
			catalog.KeyTrenchPerMeter: 27.1,
		},
		Uplifts: map[string]map[string]float64{
			catalog.UpliftLocation: {"semi-rural": 1.07},
			catalog.UpliftTerrain:  {"rocky": 1.33},
			catalog.UpliftTraffic:  {"high": 1.11},
		},
	}

	inputs := []Input{
		{DistanceMeters: 0, PremisesCount: 0},
		{DistanceMeters: 1, PremisesCount: 1, BuildMethod: types.BuildOverhead},
		{DistanceMeters: 333.3, PremisesCount: 7, LocationType: "Semi_Rural", TerrainType: "ROCKY", TrafficManagement: "high", BuildMethod: types.BuildUnderground},
		{DistanceMeters: 12345.67, PremisesCount: 991, LocationType: "urban", BuildMethod: types.BuildHybrid},
	}

	for _, in := range inputs {
		r := Compute(in, c)
		breakdown := r.Breakdown()
		require.Len(t, breakdown, 4)
		assert.True(t, breakdown.Total().Equal(r.BaseCost), "breakdown %s != base %s", breakdown.Total(), r.BaseCost)
	}
}

func TestUpliftKeysAreNormalized(t *testing.T) {
	c := &catalog.Catalog{
		Uplifts: map[string]map[string]float64{
			catalog.UpliftLocation: {"semi-rural": 1.5},
		},
	}
	in := Input{DistanceMeters: 100, PremisesCount: 1, LocationType: "Semi_Rural"}

	r := Compute(in, c)
	assert.Equal(t, 1.5, r.UpliftMultiplier)
	// equipment carries no uplift
	assert.True(t, r.EquipmentCost.Equal(dec("2000")))
	assert.True(t, r.FibreCost.Equal(dec("1200")), "fibre %s", r.FibreCost)
}

func TestZeroPremisesDoesNotDivide(t *testing.T) {
	r := Compute(Input{DistanceMeters: 100}, &catalog.Catalog{})
	assert.True(t, r.CostPerPremise.IsZero())
	assert.True(t, r.EquipmentCost.IsZero())
}

func TestComputeIsPure(t *testing.T) {
	c := catalog.Default()
	in := referenceInput(types.BuildOverhead)
	assert.Equal(t, Compute(in, c), Compute(in, c))
}

func TestApplyWritesRequest(t *testing.T) {
	req := &types.EstimationRequest{
		DistanceMeters: 500,
		PremisesCount:  68,
		LocationType:   "urban",
		TerrainType:    "normal",
		BuildMethod:    types.BuildHybrid,
	}
	Apply(req, catalog.Default())

	require.Len(t, req.CostBreakdown, 4)
	assert.Equal(t, types.LineFibre, req.CostBreakdown[0].Name)
	assert.Equal(t, types.LineEquipment, req.CostBreakdown[3].Name)
	assert.True(t, req.BaseCost.Equal(dec("157500")))
	assert.True(t, req.CostPerPremise.Equal(dec("157500").Div(dec("68"))))
	assert.Equal(t, "default-1", req.CatalogVersion)
}
