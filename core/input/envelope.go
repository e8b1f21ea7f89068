// Package input - Normalized site input
// Everything downstream of the boundary consumes the request built here.
// Decouples CLI and API field names from the pipeline's working state.
package input

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"fibre-cost/core/types"
	ferrors "fibre-cost/internal/errors"
)

// Defaults for optional classifications
const (
	DefaultTerrain    = "normal"
	DefaultTraffic    = "standard"
	DefaultContractor = "standard"
	DefaultPriority   = "standard"
)

var defaultValidator = NewValidator()

// Validate checks raw site input at the boundary
func Validate(p types.SiteParams) error {
	return validateWith(defaultValidator, p)
}

func validateWith(v *Validator, p types.SiteParams) error {
	err := v.Struct(p)
	if err == nil {
		if p.RegulatoryCost.IsNegative() {
			return ferrors.Input("regulatory_cost must not be negative").WithContext("field", "regulatory_cost")
		}
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return ferrors.Wrap(ferrors.TypeInput, "invalid site parameters", err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, describe(fe))
	}
	return ferrors.Wrap(ferrors.TypeInput, "invalid site parameters: "+strings.Join(fields, "; "), err).
		WithContext("fields", fields)
}

func describe(fe validator.FieldError) string {
	name := fe.Namespace()
	if i := strings.Index(name, "."); i >= 0 {
		name = name[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "gt":
		return name + " must be greater than " + fe.Param()
	case "gte", "lte":
		return name + " is out of range"
	case "location_type":
		return name + " must be one of " + strings.Join(LocationTypes, ", ")
	case "terrain_type":
		return name + " must be one of " + strings.Join(TerrainTypes, ", ")
	case "traffic_level":
		return name + " must be one of " + strings.Join(TrafficLevels, ", ")
	default:
		return name + " failed " + fe.Tag()
	}
}

// Normalize validates p and maps it onto a fresh working state.
// The request id is left for the engine to assign.
func Normalize(p types.SiteParams) (*types.EstimationRequest, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}
	return Map(p), nil
}

// Map converts raw input field names to the working-state names without validating
func Map(p types.SiteParams) *types.EstimationRequest {
	req := &types.EstimationRequest{
		SiteRef:              strings.TrimSpace(p.SiteRef),
		DistanceMeters:       p.Distance,
		PremisesCount:        p.Premises,
		LocationType:         LocationKey(p.BuildType),
		TerrainType:          orDefault(TerrainKey(p.Terrain), DefaultTerrain),
		TrafficManagement:    orDefault(TrafficKey(p.Traffic), DefaultTraffic),
		ContractorStrategy:   orDefault(strings.ToLower(strings.TrimSpace(p.Contractor)), DefaultContractor),
		Priority:             orDefault(strings.ToLower(strings.TrimSpace(p.Priority)), DefaultPriority),
		RegulatoryCost:       p.RegulatoryCost,
		SimulationAdjustment: p.SimulationAdjustment,
		Assumptions:          []string{},
		Validation:           types.Validation{Status: types.ValidationPending},
	}
	if p.Latitude != nil {
		lat := *p.Latitude
		req.Latitude = &lat
	}
	if p.Longitude != nil {
		lon := *p.Longitude
		req.Longitude = &lon
	}
	if len(p.NearbyProviders) > 0 {
		req.NearbyProviders = append([]types.NearbyProvider(nil), p.NearbyProviders...)
	}
	return req
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
