package optimization

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fibre-cost/core/types"
)

func breakdown(fibre, civils, labour, equipment int64) (types.Breakdown, decimal.Decimal) {
	b := types.Breakdown{
		{Name: types.LineFibre, Amount: decimal.NewFromInt(fibre)},
		{Name: types.LineCivils, Amount: decimal.NewFromInt(civils)},
		{Name: types.LineLabour, Amount: decimal.NewFromInt(labour)},
		{Name: types.LineEquipment, Amount: decimal.NewFromInt(equipment)},
	}
	return b, b.Total()
}

func titles(s []types.Suggestion) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[i] = v.Title
	}
	return out
}

func TestSuggestKeepsTopThreeBySavings(t *testing.T) {
	b, base := breakdown(20, 50, 30, 0)
	ctx := Context{
		Breakdown:         b,
		BaseCost:          base,
		BuildMethod:       types.BuildHybrid,
		TrafficManagement: "High",
		TerrainType:       "extreme",
		LocationType:      "Rural",
		NearbyProviders:   []types.NearbyProvider{{Name: "Jio", DistanceKm: 1.5}},
	}

	got, err := Suggest(ctx)
	require.NoError(t, err)
	require.Len(t, got, MaxSuggestions)
	assert.Equal(t, []string{
		"Reduce civils via micro-trenching / HDD selection",
		"Evaluate infrastructure sharing",
		"Optimize crew plan and work packaging",
	}, titles(got))
	assert.Equal(t, 8.0, got[0].EstimatedSavingsPct)
	assert.Equal(t, 6.0, got[1].EstimatedSavingsPct)
	assert.Equal(t, 4.0, got[2].EstimatedSavingsPct)
}

func TestSuggestEmptyForNonPositiveBase(t *testing.T) {
	b, _ := breakdown(0, 0, 0, 0)
	got, err := Suggest(Context{Breakdown: b, BaseCost: decimal.Zero, TrafficManagement: "critical"})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got, err = Suggest(Context{BaseCost: decimal.NewFromInt(-5)})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSuggestReferenceSiteHasNoShareRules(t *testing.T) {
	b, base := breakdown(4000, 12500, 5000, 136000)
	got, err := Suggest(Context{Breakdown: b, BaseCost: base, BuildMethod: types.BuildHybrid, LocationType: "urban", TerrainType: "normal"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAerialRuleRequiresOverheadOrHybrid(t *testing.T) {
	b, base := breakdown(30, 10, 10, 50)

	got, err := Suggest(Context{Breakdown: b, BaseCost: base, BuildMethod: types.BuildUnderground})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = Suggest(Context{Breakdown: b, BaseCost: base, BuildMethod: types.BuildOverhead})
	require.NoError(t, err)
	assert.Equal(t, []string{"Consider aerial sections where feasible"}, titles(got))

	// undecided build method is treated as hybrid
	got, err = Suggest(Context{Breakdown: b, BaseCost: base})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSharingRationaleNamesSortedDistinctProviders(t *testing.T) {
	b, base := breakdown(10, 10, 10, 70)
	got, err := Suggest(Context{
		Breakdown: b,
		BaseCost:  base,
		NearbyProviders: []types.NearbyProvider{
			{Name: "Jio", DistanceKm: 0.5},
			{Name: "Airtel", DistanceKm: 1.9},
			{Name: "Jio", DistanceKm: 1.0},
			{Name: "BSNL", DistanceKm: 2.5},
		},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Rationale, "Nearby operators detected (Airtel, Jio).")
}

func TestRouteSelectionOnlyForRuralHardTerrain(t *testing.T) {
	b, base := breakdown(10, 10, 10, 70)

	got, err := Suggest(Context{Breakdown: b, BaseCost: base, TerrainType: "difficult", LocationType: "urban"})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = Suggest(Context{Breakdown: b, BaseCost: base, TerrainType: "Difficult", LocationType: "rural"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Route selection to avoid hard terrain"}, titles(got))
}

func TestSuggestRejectsMalformedBreakdown(t *testing.T) {
	_, err := Suggest(Context{BaseCost: decimal.NewFromInt(10)})
	assert.Error(t, err)

	b := types.Breakdown{{Name: types.LineFibre, Amount: decimal.NewFromInt(-1)}}
	_, err = Suggest(Context{Breakdown: b, BaseCost: decimal.NewFromInt(10)})
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	out := Render([]types.Suggestion{
		{Title: "A", Rationale: "first", EstimatedSavingsPct: 8},
		{Title: "B", Rationale: "second", EstimatedSavingsPct: 3.5},
	})
	assert.Equal(t, "- A: first (est. 8.0%)\n- B: second (est. 3.5%)", out)
	assert.Empty(t, Render(nil))
}
