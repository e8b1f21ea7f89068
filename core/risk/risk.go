// Package risk scores deployment risk from site classification.
//
// This is a placeholder scoring model, additive and easy to extend, not a
// calibrated actuarial one. The multiplier only ever increases cost.
package risk

import (
	"strings"

	"fibre-cost/core/types"
)

// Additive risk terms
const (
	Base        = 1.0
	UrbanUplift = 0.30
	RockyUplift = 0.25
)

// Level thresholds
const (
	HighThreshold   = 1.5
	MediumThreshold = 1.3
)

// Multiplier returns the risk multiplier for a location and terrain.
// Inputs are compared case-insensitively.
func Multiplier(locationType, terrainType string) float64 {
	m := Base
	if strings.EqualFold(strings.TrimSpace(locationType), "urban") {
		m += UrbanUplift
	}
	if strings.EqualFold(strings.TrimSpace(terrainType), "rocky") {
		m += RockyUplift
	}
	return m
}

// Confidence is the inverse of the risk multiplier, in (0, 1]
func Confidence(multiplier float64) float64 {
	if multiplier <= 0 {
		return 0
	}
	return 1 / multiplier
}

// Level buckets a multiplier for reporting
func Level(multiplier float64) types.RiskLevel {
	switch {
	case multiplier > HighThreshold:
		return types.RiskHigh
	case multiplier > MediumThreshold:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

// Apply scores req and writes the multiplier into it
func Apply(req *types.EstimationRequest) float64 {
	req.RiskMultiplier = Multiplier(req.LocationType, req.TerrainType)
	return req.RiskMultiplier
}
