// Package simulation derives a resource plan from route length and premises.
// Fixed-ratio division with integer truncation, never rounding.
package simulation

import (
	"math"

	"fibre-cost/core/types"
)

// Ratios used by the simulator
const (
	PremisesPerTeam    = 12.0
	MetersPerTeam      = 120.0
	MetersPerEquipment = 250.0
	MetersPerDay       = 80.0
	PremisesPerDay     = 30.0
)

// Run computes labour teams, equipment units and total days
func Run(distanceMeters float64, premises int) types.SimulationResult {
	p := float64(premises)
	return types.SimulationResult{
		LabourTeams:    truncate(p/PremisesPerTeam + distanceMeters/MetersPerTeam),
		EquipmentUnits: truncate(distanceMeters / MetersPerEquipment),
		TotalDays:      truncate(distanceMeters/MetersPerDay + p/PremisesPerDay),
	}
}

// Apply simulates req and writes the result into it
func Apply(req *types.EstimationRequest) types.SimulationResult {
	req.Simulation = Run(req.DistanceMeters, req.PremisesCount)
	return req.Simulation
}

func truncate(v float64) int {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	return int(math.Floor(v))
}
