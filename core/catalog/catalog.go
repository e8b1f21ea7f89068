// Package catalog - Versioned cost catalog
// Unit rates and multiplicative uplifts used by the cost calculator.
// Missing keys fall back to documented defaults rather than failing.
package catalog

import (
	"encoding/json"

	"fibre-cost/core/determinism"
)

// Unit cost keys
const (
	KeyFibrePerMeter       = "fibre_material_per_m"
	KeyTrenchPerMeter      = "trench_civils_per_m"
	KeyLabourPerDay        = "labour_rate_per_day"
	KeyEquipmentPerPremise = "equipment_per_premise"
)

// Uplift categories
const (
	UpliftLocation = "location_type"
	UpliftTerrain  = "terrain_type"
	UpliftTraffic  = "traffic_management"
)

// Documented fallback rates
const (
	DefaultFibrePerMeter       = 8.0
	DefaultTrenchPerMeter      = 25.0
	DefaultLabourPerDay        = 500.0
	DefaultEquipmentPerPremise = 2000.0
	DefaultUplift              = 1.0
)

// UnknownVersion is reported when a catalog carries no version
const UnknownVersion = "unknown"

// UpliftCategories lists the recognised uplift categories
var UpliftCategories = []string{UpliftLocation, UpliftTerrain, UpliftTraffic}

// Catalog is a versioned table of unit costs and uplifts
type Catalog struct {
	// Version identifies the rate card
	Version string `json:"version" hcl:"version,optional"`

	// Currency is informational; amounts are in catalog currency units
	Currency string `json:"currency,omitempty" hcl:"currency,optional"`

	// UnitCosts maps a rate key to its unit price
	UnitCosts map[string]float64 `json:"unit_costs" hcl:"unit_costs"`

	// Uplifts maps category -> classification -> multiplier
	Uplifts map[string]map[string]float64 `json:"uplifts,omitempty" hcl:"uplifts,optional"`
}

// UnitCost returns the rate for key, or def when absent
func (c *Catalog) UnitCost(key string, def float64) float64 {
	if c == nil {
		return def
	}
	if v, ok := c.UnitCosts[key]; ok {
		return v
	}
	return def
}

// Uplift returns the multiplier for category/key, or def when absent
func (c *Catalog) Uplift(category, key string, def float64) float64 {
	if c == nil {
		return def
	}
	if v, ok := c.Uplifts[category][key]; ok {
		return v
	}
	return def
}

// VersionOrUnknown returns the catalog version for lineage
func (c *Catalog) VersionOrUnknown() string {
	if c == nil || c.Version == "" {
		return UnknownVersion
	}
	return c.Version
}

// Fingerprint returns a content hash of the canonical catalog.
// encoding/json sorts map keys, so equal catalogs hash equally.
func (c *Catalog) Fingerprint() determinism.ContentHash {
	data, _ := json.Marshal(c)
	return determinism.ComputeHash(data)
}

// Default returns the documented default catalog
func Default() *Catalog {
	return &Catalog{
		Version:  "default-1",
		Currency: "GBP",
		UnitCosts: map[string]float64{
			KeyFibrePerMeter:       DefaultFibrePerMeter,
			KeyTrenchPerMeter:      DefaultTrenchPerMeter,
			KeyLabourPerDay:        DefaultLabourPerDay,
			KeyEquipmentPerPremise: DefaultEquipmentPerPremise,
		},
		Uplifts: map[string]map[string]float64{
			UpliftLocation: {"urban": 1.0, "suburban": 1.0, "rural": 1.0},
			UpliftTerrain:  {"normal": 1.0},
			UpliftTraffic:  {"standard": 1.0},
		},
	}
}
