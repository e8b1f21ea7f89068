package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fibre-cost/core/types"
)

func TestMultiplier(t *testing.T) {
	tests := []struct {
		location string
		terrain  string
		want     float64
	}{
		{"urban", "rocky", 1.55},
		{"URBAN", "Rocky", 1.55},
		{"urban", "normal", 1.3},
		{"rural", "rocky", 1.25},
		{"suburban", "normal", 1.0},
		{"", "", 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.location+"/"+tt.terrain, func(t *testing.T) {
			got := Multiplier(tt.location, tt.terrain)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 1.0)
			assert.LessOrEqual(t, got, 1.55+1e-9)
			assert.Equal(t, 1/got, Confidence(got))
		})
	}
}

func TestLevel(t *testing.T) {
	assert.Equal(t, types.RiskHigh, Level(1.55))
	assert.Equal(t, types.RiskMedium, Level(1.5))
	assert.Equal(t, types.RiskMedium, Level(1.31))
	assert.Equal(t, types.RiskLow, Level(1.3))
	assert.Equal(t, types.RiskLow, Level(1.0))
}

func TestConfidenceBounds(t *testing.T) {
	assert.Equal(t, 1.0, Confidence(1.0))
	assert.Zero(t, Confidence(0))
}

func TestApply(t *testing.T) {
	req := &types.EstimationRequest{LocationType: "urban", TerrainType: "rocky"}
	Apply(req)
	assert.InDelta(t, 1.55, req.RiskMultiplier, 1e-9)
	assert.Equal(t, Multiplier("urban", "rocky"), Multiplier("urban", "rocky"))
}
