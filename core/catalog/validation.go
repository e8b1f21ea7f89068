// Package catalog - Catalog validation
// Structural checks only: rate semantics are the owner's concern.
package catalog

import (
	"errors"
	"fmt"
	"slices"
)

// ValidationRule is a catalog validation rule
type ValidationRule func(*Catalog) error

// DefaultValidationRules returns the standard validation rules
func DefaultValidationRules() []ValidationRule {
	return []ValidationRule{
		validateVersion,
		validateUnitCosts,
		validateUplifts,
	}
}

// Validate checks a catalog against the default rules and joins every failure
func (c *Catalog) Validate() error {
	var errs []error
	for _, rule := range DefaultValidationRules() {
		if err := rule(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func validateVersion(c *Catalog) error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}
	return nil
}

func validateUnitCosts(c *Catalog) error {
	if c.UnitCosts == nil {
		return fmt.Errorf("unit_costs is required")
	}
	var errs []error
	for key, rate := range c.UnitCosts {
		if rate <= 0 {
			errs = append(errs, fmt.Errorf("unit_costs.%s must be positive, got %v", key, rate))
		}
	}
	return errors.Join(errs...)
}

func validateUplifts(c *Catalog) error {
	var errs []error
	for category, entries := range c.Uplifts {
		if !slices.Contains(UpliftCategories, category) {
			errs = append(errs, fmt.Errorf("uplifts.%s is not a known category", category))
			continue
		}
		for key, m := range entries {
			if m <= 0 {
				errs = append(errs, fmt.Errorf("uplifts.%s.%s must be positive, got %v", category, key, m))
			}
		}
	}
	return errors.Join(errs...)
}
