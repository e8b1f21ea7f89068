// Package types defines core domain types shared across all layers.
// This package contains NO business logic - only type definitions.
package types

import (
	"strings"

	"github.com/shopspring/decimal"
)

// BuildMethod is the physical construction approach for a deployment
type BuildMethod string

const (
	BuildUnderground BuildMethod = "Underground"
	BuildOverhead    BuildMethod = "Overhead"
	BuildHybrid      BuildMethod = "Hybrid"

	// BuildUndecided is the zero value before the build method decision stage
	BuildUndecided BuildMethod = ""
)

// BuildMethods lists every build method in comparison order
var BuildMethods = []BuildMethod{BuildUnderground, BuildOverhead, BuildHybrid}

// String returns the string representation
func (b BuildMethod) String() string {
	return string(b)
}

// IsValid checks if the build method is a known method
func (b BuildMethod) IsValid() bool {
	switch b {
	case BuildUnderground, BuildOverhead, BuildHybrid:
		return true
	default:
		return false
	}
}

// ParseBuildMethod parses a build method case-insensitively.
// Unknown values yield BuildUndecided.
func ParseBuildMethod(s string) BuildMethod {
	for _, m := range BuildMethods {
		if strings.EqualFold(string(m), s) {
			return m
		}
	}
	return BuildUndecided
}

// NearbyProvider is a network operator with infrastructure close to a site
type NearbyProvider struct {
	Name       string  `json:"name" validate:"required"`
	Latitude   float64 `json:"lat"`
	Longitude  float64 `json:"lon"`
	DistanceKm float64 `json:"distance_km"`
	Notes      string  `json:"notes,omitempty"`
}

// SiteParams is the raw caller input for one estimation run.
// Field names follow the intake form; the engine normalizes them.
type SiteParams struct {
	// SiteRef is an optional caller reference for the site
	SiteRef string `json:"site_ref,omitempty" validate:"omitempty,max=128"`

	// Distance is the route length in metres
	Distance float64 `json:"distance" validate:"gt=0"`

	// Premises is the number of premises passed
	Premises int `json:"premises" validate:"gt=0"`

	// BuildType is the location type (urban, suburban, rural)
	BuildType string `json:"build_type" validate:"required,location_type"`

	// Terrain is the terrain classification
	Terrain string `json:"terrain,omitempty" validate:"omitempty,terrain_type"`

	// Traffic is the traffic management level
	Traffic string `json:"traffic,omitempty" validate:"omitempty,traffic_level"`

	// Contractor is the contractor strategy (standard, premium)
	Contractor string `json:"contractor,omitempty"`

	// Priority is the delivery priority (standard, urgent)
	Priority string `json:"priority,omitempty"`

	// Latitude and Longitude locate the site for the provider lookup
	Latitude  *float64 `json:"lat,omitempty" validate:"omitnil,gte=-90,lte=90"`
	Longitude *float64 `json:"lon,omitempty" validate:"omitnil,gte=-180,lte=180"`

	// RegulatoryCost is an additive cost term (permits, wayleaves)
	RegulatoryCost decimal.Decimal `json:"regulatory_cost"`

	// SimulationAdjustment is an additive cost term from scheduling
	SimulationAdjustment decimal.Decimal `json:"simulation_adjustment"`

	// NearbyProviders overrides the provider lookup when supplied
	NearbyProviders []NearbyProvider `json:"nearby_providers,omitempty" validate:"omitempty,dive"`
}

// HasLocation reports whether both coordinates are present
func (p SiteParams) HasLocation() bool {
	return p.Latitude != nil && p.Longitude != nil
}
